// Package store persists the run history.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// ErrNotLoaded is returned when a repository is changed before Load
var ErrNotLoaded = errors.New("history not loaded")

// Repository is the read-modify-write surface the report aggregator uses.
// Load must be called once before Append and Save. There is no locking
// across processes: two concurrent invocations race and the last Save wins.
type Repository interface {
	// Load reads the persisted history, most recent run first. A missing
	// store is an empty history, not an error.
	Load(ctx context.Context) (types.History, error)
	// Append puts run in front of the loaded history.
	Append(run types.RunRecord) error
	// Save persists the history.
	Save(ctx context.Context) error
	Close() error
}

// Backends accepted by Open
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the repository for backend stored at path
func Open(backend, path string) (Repository, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSON(path), nil
	case BackendSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}
