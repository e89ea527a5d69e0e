// Package stage defines the leveled error carried through a datastream run.
//
// ERROR level errors are tied to a single entry: the entry is counted as a
// failure and the run continues. CRITICAL errors abort the run.
package stage

import (
	"errors"
	"fmt"
)

// Error levels, ordered by severity.
const (
	ERROR ErrorLevel = iota + 2
	CRITICAL
)

// ErrorLevel indicates the severity of the error
type ErrorLevel int

func levelToString(lvl ErrorLevel) string {
	switch lvl {
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Error is an error that happened while a stage was handling an entry.
// Stage names the reader, transformer or writer ("transformer:xml"), EntryID
// the entry that was in process, if any.
type Error struct {
	Lvl     ErrorLevel
	Stage   string
	EntryID string
	Err     error
}

// Error returns the error as a string
func (e *Error) Error() string {
	var msg string
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Stage != "" && e.EntryID != "":
		return fmt.Sprintf("%s: %s [%s]: %s", levelToString(e.Lvl), e.Stage, e.EntryID, msg)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s: %s", levelToString(e.Lvl), e.Stage, msg)
	default:
		return fmt.Sprintf("%s: %s", levelToString(e.Lvl), msg)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Fatal marks err as CRITICAL so that the run is aborted when it surfaces.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		cp := *se
		cp.Lvl = CRITICAL
		return &cp
	}
	return &Error{Lvl: CRITICAL, Err: err}
}

// EntryError marks err as a recoverable failure of the entry identified by id.
func EntryError(id string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Lvl: ERROR, EntryID: id, Err: err}
}

// IsFatal reports whether err, or any error it wraps, is CRITICAL.
func IsFatal(err error) bool {
	var se *Error
	for err != nil {
		if !errors.As(err, &se) {
			return false
		}
		if se.Lvl == CRITICAL {
			return true
		}
		err = se.Err
	}
	return false
}

// Wrap attaches stage and entry context to err, keeping its level. Errors
// that are not yet leveled become ERROR.
func Wrap(stageName, entryID string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		cp := *se
		if cp.Stage == "" {
			cp.Stage = stageName
		}
		if cp.EntryID == "" {
			cp.EntryID = entryID
		}
		return &cp
	}
	return &Error{Lvl: ERROR, Stage: stageName, EntryID: entryID, Err: err}
}
