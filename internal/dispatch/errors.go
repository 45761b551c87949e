package dispatch

import (
	"errors"
	"fmt"
)

// Stages a StructuralError can come from.
const (
	StageConfig   = "config"
	StageGuard    = "guard"
	StageIngest   = "ingest"
	StageTemplate = "template"
	StageHistory  = "history"
	StageMail     = "mail"
)

// StructuralError aborts a run before any item is processed.
type StructuralError struct {
	Stage string
	Err   error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Structural wraps err as a StructuralError for stage. It returns nil for
// a nil err.
func Structural(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StructuralError{Stage: stage, Err: err}
}

// IsStructural reports whether err (or any error in its chain) is a
// StructuralError.
func IsStructural(err error) bool {
	var sErr *StructuralError
	return errors.As(err, &sErr)
}
