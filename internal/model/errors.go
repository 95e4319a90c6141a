package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every stage. Stages wrap these with fmt.Errorf("%w: ...")
// so callers can match with errors.Is.
var (
	ErrDataInsufficient        = errors.New("data insufficient")
	ErrShapeMismatch           = errors.New("shape mismatch")
	ErrModelFitFailed          = errors.New("model fit failed")
	ErrAlignment               = errors.New("alignment error")
	ErrConfiguration           = errors.New("configuration error")
	ErrUpstreamDataUnavailable = errors.New("upstream data unavailable")
)

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// WrapStage returns nil for a nil err.
func WrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
