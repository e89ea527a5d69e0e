package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/pipeline"
)

// RunFunc runs a pipeline Config.
type RunFunc func(ctx context.Context, cfg pipeline.Config) (*pipeline.Result, error)

// Run builds a Pipeline from cfg with opts and runs it.
func Run(opts ...pipeline.Option) RunFunc {
	return func(ctx context.Context, cfg pipeline.Config) (*pipeline.Result, error) {
		p, err := pipeline.New(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return p.Run(ctx)
	}
}

// Job is a job type scheduled under a name.
type Job struct {
	Name     string                 `json:"name" yaml:"name"`
	Schedule string                 `json:"schedule" yaml:"schedule"`
	Type     string                 `json:"type" yaml:"type"`
	Args     map[string]interface{} `json:"args,omitempty" yaml:"args,omitempty"`
}

// Schedule is the content of a schedule file.
type Schedule struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// LoadSchedule reads a YAML schedule file, ${VAR} references are expanded.
func LoadSchedule(path string) (Schedule, error) {
	var s Schedule
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &s)
	return s, err
}

// Scheduler runs jobs on cron schedules. Each run of a job gets the start
// time of its last successful run as since. A run is skipped while the
// previous one of the same job is still going.
type Scheduler struct {
	registry *Registry
	run      RunFunc
	cron     *cron.Cron
	parser   cron.Parser
	ctx      context.Context
	cancel   context.CancelFunc

	mu          sync.Mutex
	lastSuccess map[string]time.Time
}

// NewScheduler returns a Scheduler resolving job types from r and running
// their pipelines with run.
func NewScheduler(r *Registry, run RunFunc) *Scheduler {
	l := cronLogger{log.With("component", "scheduler")}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		registry: r,
		run:      run,
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		parser:      cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		ctx:         ctx,
		cancel:      cancel,
		lastSuccess: map[string]time.Time{},
	}
}

// Add schedules j. The job type must exist and build a valid Config, the
// pipeline itself is only built when the job fires.
func (s *Scheduler) Add(j Job) error {
	t, err := s.registry.Get(j.Type)
	if err != nil {
		return err
	}
	if _, err := t.Build(nil, j.Args); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	sched, err := s.parser.Parse(j.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: invalid schedule %q, %w", j.Name, j.Schedule, err)
	}
	s.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.RunJob(s.ctx, j); err != nil {
			log.With("job", j.Name).Errorf("job failed, %s", err)
		}
	}))
	log.With("job", j.Name).With("next", sched.Next(time.Now())).Infoln("job scheduled")
	return nil
}

// RunJob runs j once.
func (s *Scheduler) RunJob(ctx context.Context, j Job) (*pipeline.Result, error) {
	t, err := s.registry.Get(j.Type)
	if err != nil {
		return nil, err
	}
	var since *time.Time
	if last, ok := s.LastSuccess(j.Name); ok {
		since = &last
	}
	cfg, err := t.Build(since, j.Args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.run(ctx, cfg)
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	s.lastSuccess[j.Name] = start
	s.mu.Unlock()
	log.With("job", j.Name).With("run", res.RunID).With("written", res.Written).With("errored", res.Errored).Infoln("job completed")
	return res, nil
}

// LastSuccess returns the start time of the last successful run of the job
// named name.
func (s *Scheduler) LastSuccess(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSuccess[name]
	return t, ok
}

// SetLastSuccess seeds the since time of the job named name.
func (s *Scheduler) SetLastSuccess(name string, t time.Time) {
	s.mu.Lock()
	s.lastSuccess[name] = t
	s.mu.Unlock()
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling jobs, cancels the running ones and waits for them
// to return or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts log.Logger to cron.Logger.
type cronLogger struct {
	l log.Logger
}

func (c cronLogger) with(keysAndValues []interface{}) log.Logger {
	l := c.l
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		l = l.With(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	return l
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.with(keysAndValues).Debugln(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.with(keysAndValues).Errorf("%s, %s", msg, err)
}
