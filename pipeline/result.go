package pipeline

import (
	"encoding/json"
	"time"
)

// State of a Pipeline. A Pipeline goes from Idle to Running and ends either
// Completed or Aborted.
type State int32

// Possible State values.
const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result summarizes a run.
//
// Read counts the entries produced by the readers, Transformed those that
// came out of the transformer chain, Filtered those dropped on purpose.
// Written counts the entries stored, once per writer. Errored counts every
// failure: reader, transformer and writer ones. Errors keeps them in the
// order they happened, up to the configured cap; Dropped counts the ones
// beyond it.
//
// Writer outcomes are counted per writer, not per entry: with several
// writers an entry stored by one and refused by another adds to both Written
// and Errored. Each entry still has a single transformer outcome, so
// Transformed + Filtered + the transformer failures equal Read.
type Result struct {
	RunID       string
	State       State
	Read        int
	Transformed int
	Filtered    int
	Written     int
	Errored     int
	Errors      []error
	Dropped     int
	Started     time.Time
	Finished    time.Time
	// Err is the error that aborted the run.
	Err error
}

// Duration of the run.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

type jsonResult struct {
	RunID       string    `json:"run_id"`
	State       State     `json:"state"`
	Read        int       `json:"read"`
	Transformed int       `json:"transformed"`
	Filtered    int       `json:"filtered"`
	Written     int       `json:"written"`
	Errored     int       `json:"errored"`
	Errors      []string  `json:"errors,omitempty"`
	Dropped     int       `json:"errors_dropped,omitempty"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Duration    string    `json:"duration"`
	Err         string    `json:"error,omitempty"`
}

// MarshalJSON renders errors as their messages.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := jsonResult{
		RunID:       r.RunID,
		State:       r.State,
		Read:        r.Read,
		Transformed: r.Transformed,
		Filtered:    r.Filtered,
		Written:     r.Written,
		Errored:     r.Errored,
		Dropped:     r.Dropped,
		Started:     r.Started,
		Finished:    r.Finished,
		Duration:    r.Duration().String(),
	}
	for _, err := range r.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	if r.Err != nil {
		out.Err = r.Err.Error()
	}
	return json.Marshal(out)
}

// record counts err and keeps it when max allows, max < 0 keeps everything.
func (r *Result) record(err error, max int) {
	r.Errored++
	if max >= 0 && len(r.Errors) >= max {
		r.Dropped++
		return
	}
	r.Errors = append(r.Errors, err)
}
