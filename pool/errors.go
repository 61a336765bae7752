package pool

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports a pool that cannot be built as requested,
	// e.g. a number of init argument sets different from the worker count.
	ErrConfiguration = errors.New("pool: invalid configuration")

	ErrPoolClosed      = errors.New("pool: closed")
	ErrPoolTerminated  = errors.New("pool: terminated")
	ErrShutdownTimeout = errors.New("pool: shutdown timed out")

	// ErrWorkerCrashed is wrapped by the TaskError of a work unit whose
	// worker died while running it.
	ErrWorkerCrashed = errors.New("pool: worker crashed")
)

// KindPanic is the TaskError kind of a recovered panic.
const KindPanic = "panic"

// TaskError carries a failure raised inside a worker to the submitter.
// Kind, Message and Trace are captured on the worker at the point of
// failure and survive JSON encoding; Err is the original error and is only
// set on the side that captured it.
type TaskError struct {
	Kind    string
	Message string
	Trace   string
	Err     error
}

// Error returns the original message followed by the worker-side trace.
func (e *TaskError) Error() string {
	return e.Message + "\nOriginal traceback:\n" + e.Trace
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type taskErrorWire struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

func (e *TaskError) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskErrorWire{Kind: e.Kind, Message: e.Message, Trace: e.Trace})
}

func (e *TaskError) UnmarshalJSON(data []byte) error {
	var w taskErrorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = TaskError{Kind: w.Kind, Message: w.Message, Trace: w.Trace}
	return nil
}

// DecodeTaskError rebuilds a TaskError received from another process.
func DecodeTaskError(data []byte) (*TaskError, error) {
	e := &TaskError{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("pool: decode task error: %w", err)
	}
	return e, nil
}

// AsTaskError extracts the TaskError wrapped in err, if any.
func AsTaskError(err error) (*TaskError, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
