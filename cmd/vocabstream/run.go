package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/pipeline"
)

func runRun(args []string) error {
	flagset := baseFlagSet("run")
	metricsAddr := flagset.String("metrics.addr", "", "serve prometheus metrics on this address, e.g. :9090")
	stopTimeout := flagset.Duration("stop.timeout", 30*time.Second, "time the entry in flight is given to complete after a stop, a second signal cancels at once")
	flagset.Usage = usageFor(flagset, "vocabstream run [flags] <pipeline>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	args = flagset.Args()
	if len(args) <= 0 {
		// Set to default argument
		args = []string{defaultPipelineFile}
	}

	cfg, err := pipeline.LoadConfig(args[0])
	if err != nil {
		return err
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

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}

	{
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		g.Add(func() error {
			defer close(done)
			res, err := p.Run(ctx)
			if res != nil {
				printResult(res)
			}
			return err
		}, func(error) {
			p.Stop()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				defer signal.Stop(sig)
				stopThenCancel(done, sig, *stopTimeout, cancel)
			}()
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

func addMetricsServer(g *run.Group, addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	g.Add(func() error {
		log.With("addr", ln.Addr().String()).Infoln("serving metrics")
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	}, func(error) {
		srv.Close()
	})
	return nil
}

func printResult(res *pipeline.Result) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Errorf("unable to encode result, %s", err)
		return
	}
	fmt.Println(string(b))
}

// stopThenCancel waits for a stopped run to finish its entry in flight and
// cancels it when timeout elapses or a signal arrives first.
func stopThenCancel(done <-chan struct{}, sig <-chan os.Signal, timeout time.Duration, cancel context.CancelFunc) {
	defer cancel()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		log.With("stop_timeout", timeout).Warnln("pipeline did not stop in time, canceling")
	case s := <-sig:
		log.With("signal", s).Warnln("canceling pipeline")
	}
}

func interrupt(cancel <-chan struct{}) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-c:
		return fmt.Errorf("received signal %s", sig)
	case <-cancel:
		return errors.New("canceled")
	}
}
