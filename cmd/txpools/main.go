// Command txpools exercises the pool substrate from the command line: it
// stresses the general pool, runs transactional batches, drives scheduled
// jobs and prints the resolved configuration.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/utkarsh5026/txpools/config"
	"github.com/utkarsh5026/txpools/pool"
)

const (
	configFlagName   = "config"
	shutdownFlagName = "shutdown-timeout"
)

func main() {
	app := cli.NewApp()
	app.Name = "txpools"
	app.Usage = "drive the shared execution pools"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to a YAML configuration file",
			EnvVar: "TXPOOLS_CONFIG",
		},
		cli.DurationFlag{
			Name:  shutdownFlagName,
			Usage: "how long to wait for pools to drain on exit",
			Value: 30 * time.Second,
		},
	}
	app.Commands = []cli.Command{
		stressCommand(),
		batchCommand(),
		scheduleCommand(),
		configCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		colorPrintLn(Red, "error:", err)
		os.Exit(1)
	}
}

// environment is what every command needs: the loaded configuration, the
// process logger and a registry built from both.
type environment struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *pool.Registry
	metrics  *pool.AtomicMetrics
	timeout  time.Duration
}

func setup(c *cli.Context) (*environment, error) {
	cfg, err := config.Load(c.GlobalString(configFlagName))
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	// GOMAXPROCS must match the container quota before pools are sized.
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Warn("could not align GOMAXPROCS with CPU quota", zap.Error(err))
	}

	metrics := &pool.AtomicMetrics{}
	registry, err := pool.NewRegistry(cfg,
		pool.WithRegistryLogger(logger),
		pool.WithRegistryMetrics(metrics),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating pool registry")
	}

	return &environment{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		timeout:  c.GlobalDuration(shutdownFlagName),
	}, nil
}

func (e *environment) close() error {
	err := e.registry.Shutdown(e.timeout)
	_ = e.logger.Sync()
	return err
}

func withEnvironment(run func(c *cli.Context, env *environment) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		env, err := setup(c)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := env.close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return run(c, env)
	}
}

func usageError(format string, args ...any) error {
	return cli.NewExitError(fmt.Sprintf(format, args...), 2)
}
