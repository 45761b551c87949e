// Package history is the append-only audit trail of dispatched emails. Each
// successful AppendRecord adds exactly one row after all existing rows and
// never touches earlier ones.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/audit-mailer/internal/model"
)

// Backend names used in StoreWriteError.
const (
	BackendXLSX   = model.BackendXLSX
	BackendSQLite = model.BackendSQLite
)

// Store persists audit records. It does not deduplicate: two calls with
// equal records produce two rows.
type Store interface {
	AppendRecord(ctx context.Context, rec model.AuditRecord) error
	Close() error
}

// RunRecorder is implemented by stores that also keep a summary per run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run model.RunSummary) error
}

// StoreWriteError reports that a record could not be appended.
type StoreWriteError struct {
	Backend string
	Target  string
	Err     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Backend, e.Target, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// IsStoreWriteError reports whether err (or any error in its chain) is a
// StoreWriteError.
func IsStoreWriteError(err error) bool {
	var sErr *StoreWriteError
	return errors.As(err, &sErr)
}

// Open opens the backend selected by cfg.History.Backend.
func Open(cfg *model.AppConfig) (Store, error) {
	switch cfg.History.Backend {
	case BackendSQLite:
		return NewSQLiteStore(cfg.Paths.HistoryDB, cfg.Paths.HistorySheet)
	case BackendXLSX, "":
		return OpenXLSX(cfg.Paths.HistoryXLSX, cfg.Paths.HistorySheet)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}
