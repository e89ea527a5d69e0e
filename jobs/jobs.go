// Package jobs describes the datastreams that can be run on demand or on a
// schedule. A job type builds a pipeline Config from the time of its last
// successful run and the custom args of the job.
package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/pipeline"
)

// BuildFunc returns the Config of a run. since is nil for the first run.
type BuildFunc func(since *time.Time, args map[string]interface{}) (pipeline.Config, error)

// Type is a kind of job.
type Type struct {
	ID          string
	Title       string
	Description string
	Build       BuildFunc
}

// ErrNotFound is returned for an unknown job type.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("job type '%s' not found in registry", e.ID)
}

// Registry maps job type ids to Types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]Type{}}
}

// Default holds the bundled job types.
var Default = NewRegistry()

func init() {
	Default.Add(ProcessDatastream)
}

// Add registers t under t.ID.
func (r *Registry) Add(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.ID] = t
}

// Get returns the Type registered under id.
func (r *Registry) Get(id string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	if !ok {
		return Type{}, ErrNotFound{ID: id}
	}
	return t, nil
}

// Types returns every registered Type sorted by id.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// ProcessDatastream runs the pipeline given in its "config" arg. The
// "writer_args" arg is laid over the args of every writer, or of the inner
// writer of an async one, e.g. {update: true}. With a since time the first
// reader gets it as its "since" arg.
var ProcessDatastream = Type{
	ID:          "process_datastream",
	Title:       "Process datastream",
	Description: "Runs the datastream described in the job args",
	Build:       buildProcessDatastream,
}

type processArgs struct {
	Config     pipeline.Config        `json:"config"`
	WriterArgs map[string]interface{} `json:"writer_args"`
}

func buildProcessDatastream(since *time.Time, args map[string]interface{}) (pipeline.Config, error) {
	var pa processArgs
	c := adaptor.Config(args)
	if err := c.Construct(&pa); err != nil {
		return pipeline.Config{}, err
	}
	cfg := pa.Config
	if since != nil && len(cfg.Readers) > 0 {
		cfg.Readers[0].Args = adaptor.Config(cfg.Readers[0].Args).Merge(map[string]interface{}{
			"since": since.UTC().Format(time.RFC3339),
		})
	}
	if len(pa.WriterArgs) > 0 {
		for i, w := range cfg.Writers {
			cfg.Writers[i] = MergeWriterArgs(w, pa.WriterArgs)
		}
	}
	return cfg, cfg.Validate()
}

// MergeWriterArgs lays extra over the args of w. The args of an async writer
// are passed down to its inner writer.
func MergeWriterArgs(w pipeline.Spec, extra map[string]interface{}) pipeline.Spec {
	if w.Type == "async" {
		inner, _ := w.Args["writer"].(map[string]interface{})
		if inner != nil {
			innerArgs, _ := inner["args"].(map[string]interface{})
			merged := adaptor.Config(inner).Merge(map[string]interface{}{
				"args": map[string]interface{}(adaptor.Config(innerArgs).Merge(extra)),
			})
			w.Args = adaptor.Config(w.Args).Merge(map[string]interface{}{"writer": map[string]interface{}(merged)})
			return w
		}
	}
	w.Args = adaptor.Config(w.Args).Merge(extra)
	return w
}
