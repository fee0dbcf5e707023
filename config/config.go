// Package config loads the settings the pool registry reads at construction.
//
// Settings come from an optional YAML file and are then overridden from the
// environment. Missing values fall back to defaults derived from the
// available parallelism.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvScheduledThreads overrides jobs.scheduled.num_threads.
const EnvScheduledThreads = "TXPOOLS_JOBS_SCHEDULED_NUM_THREADS"

// Config is the full substrate configuration.
type Config struct {
	Jobs  JobsConfig  `yaml:"jobs"`
	Pools PoolsConfig `yaml:"pools"`
	Log   LogConfig   `yaml:"log"`
}

type JobsConfig struct {
	Scheduled ScheduledConfig `yaml:"scheduled"`
}

// ScheduledConfig sizes the scheduled pool.
//
// NumThreads is kept as text: operators write both numbers and strings
// here, and a value that does not parse falls back to the default instead
// of failing startup.
type ScheduledConfig struct {
	NumThreads Setting `yaml:"num_threads"`
}

type PoolsConfig struct {
	General GeneralPoolConfig `yaml:"general"`
}

// GeneralPoolConfig overrides the general pool's default sizing. Nil
// fields are derived from the ones that are set. QueueCapacity may be set
// to 0, meaning no buffering beyond workers ready to receive.
type GeneralPoolConfig struct {
	MinWorkers    *int          `yaml:"min_workers"`
	MaxWorkers    *int          `yaml:"max_workers"`
	QueueCapacity *int          `yaml:"queue_capacity"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Setting is a scalar configuration value read verbatim.
type Setting string

// UnmarshalYAML accepts any scalar node.
func (s *Setting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: expected a scalar value", node.Line)
	}
	*s = Setting(node.Value)
	return nil
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{Log: LogConfig{Level: "info"}}
}

// Load reads the YAML file at path and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing config file %s", path)
		}
	}

	cfg.FromEnv()
	cfg.FillDefaults()
	return cfg, nil
}

// FromEnv applies environment overrides in place.
func (c *Config) FromEnv() {
	if v, ok := os.LookupEnv(EnvScheduledThreads); ok {
		c.Jobs.Scheduled.NumThreads = Setting(v)
	}
}

// FillDefaults replaces empty values that have a fixed default.
func (c *Config) FillDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ScheduledWorkers resolves the scheduled pool's worker count for the given
// parallelism. An absent value means a quarter of parallelism; a value that
// is not an integer is reported to logger and treated as absent. The result
// is never below 1.
func (c Config) ScheduledWorkers(parallelism int, logger *zap.Logger) int {
	fallback := max(1, parallelism/4)

	raw := strings.TrimSpace(string(c.Jobs.Scheduled.NumThreads))
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		if logger != nil {
			logger.Warn("ignoring non-numeric jobs.scheduled.num_threads",
				zap.String("value", raw),
				zap.Int("default", fallback),
			)
		}
		return fallback
	}
	return max(1, n)
}
