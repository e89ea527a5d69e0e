package message

// Status is the outcome of running an Entry through the transformers.
type Status int

// Possible Status values.
const (
	Success Status = iota
	Filtered
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Filtered:
		return "filtered"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// Result wraps the final Entry with its Status. Err is set only for Failure.
type Result struct {
	Entry  *Entry
	Status Status
	Err    error
}
