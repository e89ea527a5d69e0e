package main

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vocabstream/vocabstream/jobs"
	"github.com/vocabstream/vocabstream/pipeline"
)

func runSchedule(args []string) error {
	flagset := baseFlagSet("schedule")
	metricsAddr := flagset.String("metrics.addr", "", "serve prometheus metrics on this address, e.g. :9090")
	grace := flagset.Duration("shutdown.timeout", time.Minute, "time given to running jobs to finish on shutdown")
	flagset.Usage = usageFor(flagset, "vocabstream schedule [flags] <schedule>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	args = flagset.Args()
	if len(args) <= 0 {
		args = []string{defaultScheduleFile}
	}

	sched, err := jobs.LoadSchedule(args[0])
	if err != nil {
		return err
	}
	if len(sched.Jobs) == 0 {
		return fmt.Errorf("no jobs in %s", args[0])
	}

	var (
		g    run.Group
		opts []pipeline.Option
	)
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, pipeline.WithMetrics(pipeline.NewMetrics(reg)))
		if err := addMetricsServer(&g, *metricsAddr, reg); err != nil {
			return err
		}
	}

	s := jobs.NewScheduler(jobs.Default, jobs.Run(opts...))
	for _, j := range sched.Jobs {
		if err := s.Add(j); err != nil {
			return err
		}
	}

	{
		stop := make(chan struct{})
		g.Add(func() error {
			s.Start()
			<-stop
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), *grace)
			defer cancel()
			s.Stop(ctx)
			close(stop)
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return interrupt(cancel)
		}, func(error) {
			close(cancel)
		})
	}
	return g.Run()
}
