package main

import (
	"strconv"

	"github.com/urfave/cli"

	"github.com/utkarsh5026/txpools/internal/cpu"
)

func configCommand() cli.Command {
	return cli.Command{
		Name:   "config",
		Usage:  "print the pool sizes resolved from configuration",
		Action: withEnvironment(runConfig),
	}
}

func runConfig(_ *cli.Context, env *environment) error {
	general := env.registry.General().Stats()

	printSectionHeader("RESOLVED POOLS",
		"Sizes derived from GOMAXPROCS="+strconv.Itoa(cpu.Parallelism())+" and the loaded configuration")

	renderTable(
		[]string{"Pool", "Workers", "Queue", "Policy"},
		[][]string{
			{"serial", "1", "unbounded", "never rejects"},
			{"general", strconv.Itoa(general.MinWorkers) + "–" + strconv.Itoa(general.MaxWorkers), formatCount(general.QueueCapacity), "caller blocks"},
			{"scheduled", strconv.Itoa(env.registry.Scheduled().Workers()), "timer heap", "drops on shutdown"},
		},
	)
	return nil
}
