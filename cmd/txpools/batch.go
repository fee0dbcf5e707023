package main

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/utkarsh5026/txpools/pool"
	"github.com/utkarsh5026/txpools/txscope"
)

func batchCommand() cli.Command {
	return cli.Command{
		Name:  "batch",
		Usage: "process a range of items in transactional batches",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "items, n",
				Usage: "number of items to process",
				Value: 1000,
			},
			cli.IntFlag{
				Name:  "batch-size, b",
				Usage: "items per transactional scope",
				Value: 100,
			},
			cli.IntFlag{
				Name:  "fail-at",
				Usage: "item that fails, rolling back its batch (-1 disables)",
				Value: -1,
			},
			cli.StringFlag{
				Name:   "mongo-uri",
				Usage:  "run each batch in a MongoDB transaction against this deployment",
				EnvVar: "TXPOOLS_MONGO_URI",
			},
		},
		Action: withEnvironment(runBatches),
	}
}

func runBatches(c *cli.Context, env *environment) error {
	n := c.Int("items")
	size := c.Int("batch-size")
	failAt := c.Int("fail-at")
	if n < 0 || size <= 0 {
		return usageError("--items must not be negative and --batch-size must be positive")
	}

	var commits, rollbacks atomic.Int64
	scopes := txscope.FuncFactory(func(context.Context) (func() error, func() error, error) {
		return func() error { commits.Add(1); return nil },
			func() error { rollbacks.Add(1); return nil },
			nil
	})

	if uri := c.String("mongo-uri"); uri != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			return errors.Wrap(err, "connecting to MongoDB")
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				env.logger.Warn("disconnecting from MongoDB", zap.Error(err))
			}
		}()
		scopes = txscope.NewMongoFactory(txscope.ClientSessions(client))
	}

	items := make([]int, n)
	for i := range items {
		items[i] = i
	}

	var processed atomic.Int64
	action := func(_ context.Context, item int) error {
		if item == failAt {
			return fmt.Errorf("item %d rejected", item)
		}
		processed.Add(1)
		return nil
	}

	start := time.Now()
	futures, err := pool.SubmitBatches(env.registry, items, size, action, scopes)
	if err != nil {
		return err
	}

	bar := makeProgressBar(len(futures), "Batches")
	rows := make([][]string, 0, len(futures))
	for i, f := range futures {
		_, err := pool.Await(f)
		_ = bar.Add(1)

		first := i * size
		last := min(first+size, n) - 1
		outcome := "committed"
		if err != nil {
			outcome = "rolled back: " + err.Error()
		}
		rows = append(rows, []string{strconv.Itoa(i), fmt.Sprintf("%d–%d", first, last), outcome})
	}
	_ = bar.Finish()

	printSectionHeader("BATCH RESULTS",
		fmt.Sprintf("%s items in batches of %d, %s", formatCount(n), size, time.Since(start).Round(time.Millisecond)))
	renderTable([]string{"Batch", "Items", "Outcome"}, rows)

	colorPrintf(Green, "processed %s items", formatCount(processed.Load()))
	if c.String("mongo-uri") == "" {
		colorPrintf(Green, ", %d commits, %d rollbacks", commits.Load(), rollbacks.Load())
	}
	fmt.Println()
	return nil
}
