package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/urfave/cli"

	"github.com/utkarsh5026/txpools/pool"
)

func scheduleCommand() cli.Command {
	return cli.Command{
		Name:  "schedule",
		Usage: "run a recurring job on the scheduled pool for a while",
		Flags: []cli.Flag{
			cli.DurationFlag{
				Name:  "every",
				Usage: "fixed-rate period",
				Value: time.Second,
			},
			cli.StringFlag{
				Name:  "cron",
				Usage: "cron expression used instead of --every",
			},
			cli.DurationFlag{
				Name:  "for",
				Usage: "how long to let the job repeat",
				Value: 5 * time.Second,
			},
		},
		Action: withEnvironment(runSchedule),
	}
}

func runSchedule(c *cli.Context, env *environment) error {
	scheduled := env.registry.Scheduled()

	var ticks atomic.Int64
	tick := func(context.Context) error {
		n := ticks.Add(1)
		colorPrintf(Cyan, "%s tick %d\n", time.Now().Format(time.TimeOnly), n)
		return nil
	}

	var (
		f   *pool.ScheduledFuture
		err error
	)
	if expr := c.String("cron"); expr != "" {
		f, err = scheduled.ScheduleCron(expr, tick)
	} else {
		f, err = scheduled.ScheduleAtFixedRate(0, c.Duration("every"), tick)
	}
	if err != nil {
		return usageError("%v", err)
	}

	timer := time.NewTimer(c.Duration("for"))
	defer timer.Stop()

	select {
	case <-timer.C:
		f.Cancel()
	case <-f.Done():
	}

	if err := f.Get(); err != nil && !errors.Is(err, pool.ErrCancelled) {
		return err
	}
	fmt.Println()
	colorPrintf(Green, "job ran %d times\n", f.Runs())
	return nil
}
