package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func stressCommand() cli.Command {
	return cli.Command{
		Name:  "stress",
		Usage: "flood the general pool and report how backpressure absorbed it",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "tasks, n",
				Usage: "total number of tasks to submit",
				Value: 10000,
			},
			cli.IntFlag{
				Name:  "producers, p",
				Usage: "number of concurrent submitting goroutines",
				Value: 8,
			},
			cli.DurationFlag{
				Name:  "work, w",
				Usage: "simulated duration of each task",
				Value: 200 * time.Microsecond,
			},
			cli.IntFlag{
				Name:  "fail-every",
				Usage: "make every nth task fail (0 disables)",
			},
		},
		Action: withEnvironment(runStress),
	}
}

func runStress(c *cli.Context, env *environment) error {
	tasks := c.Int("tasks")
	producers := c.Int("producers")
	work := c.Duration("work")
	failEvery := c.Int("fail-every")
	if tasks <= 0 || producers <= 0 {
		return usageError("--tasks and --producers must be positive")
	}

	general := env.registry.General()
	bar := makeProgressBar(tasks, "Submitting")

	var (
		next      atomic.Int64
		ran       atomic.Int64
		execFails atomic.Int64
		wg        sync.WaitGroup
	)

	start := time.Now()
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1))
				if i > tasks {
					return
				}
				err := general.Execute(func(context.Context) error {
					time.Sleep(work)
					ran.Add(1)
					_ = bar.Add(1)
					if failEvery > 0 && i%failEvery == 0 {
						return fmt.Errorf("task %d failed on purpose", i)
					}
					return nil
				})
				if err != nil {
					execFails.Add(1)
					env.logger.Debug("submission returned error", zap.Int("task", i), zap.Error(err))
				}
			}
		}()
	}
	wg.Wait()

	if err := general.Shutdown(env.timeout); err != nil {
		return err
	}
	elapsed := time.Since(start)
	_ = bar.Finish()

	stats := general.Stats()
	snap := env.metrics.Snapshot()

	printSectionHeader("GENERAL POOL UNDER LOAD",
		fmt.Sprintf("%s tasks from %d producers, %s of work each", formatCount(tasks), producers, work))

	renderTable(
		[]string{"Submitted", "Ran", "Overflowed", "Discarded", "Failed", "Caller-visible errors", "Elapsed", "Throughput"},
		[][]string{{
			formatCount(snap.Submitted),
			formatCount(ran.Load()),
			formatCount(stats.Rejected),
			formatCount(stats.Discarded),
			formatCount(stats.Failed),
			formatCount(execFails.Load()),
			elapsed.Round(time.Millisecond).String(),
			formatRate(int(ran.Load()), elapsed),
		}},
	)

	if ran.Load() == int64(tasks) {
		colorPrintLn(Green, "✓ every submitted task ran")
	} else {
		colorPrintf(Yellow, "! %d of %d tasks ran\n", ran.Load(), tasks)
	}
	return nil
}
