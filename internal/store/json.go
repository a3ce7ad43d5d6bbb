package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// DocumentVersion is the schema version written to the history file
const DocumentVersion = 1

type document struct {
	Version int           `json:"version"`
	Runs    types.History `json:"runs"`
}

// JSONRepository keeps the history in a single JSON file
type JSONRepository struct {
	path    string
	history types.History
	loaded  bool
}

// NewJSON returns a repository backed by the file at path
func NewJSON(path string) *JSONRepository {
	return &JSONRepository{path: path}
}

// Path returns the history file location
func (r *JSONRepository) Path() string {
	return r.path
}

// Load reads the history file. Both the versioned document and the older
// bare array of runs are accepted.
func (r *JSONRepository) Load(ctx context.Context) (types.History, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.history = types.History{}
		r.loaded = true
		return r.History(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", r.path, err)
	}

	history, err := decodeHistory(data)
	if err != nil {
		return nil, fmt.Errorf("parse history %s: %w", r.path, err)
	}

	r.history = history
	r.loaded = true
	return r.History(), nil
}

func decodeHistory(data []byte) (types.History, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}

	if data[0] == '[' {
		var legacy types.History
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, err
		}
		return nonNil(legacy), nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("unsupported history version %d (newest known is %d)", doc.Version, DocumentVersion)
	}
	return nonNil(doc.Runs), nil
}

func (r *JSONRepository) Append(run types.RunRecord) error {
	if !r.loaded {
		return ErrNotLoaded
	}
	r.history = r.history.Prepend(run)
	return nil
}

// Save writes the whole history to a temporary file next to the target
// and renames it into place.
func (r *JSONRepository) Save(ctx context.Context) error {
	if !r.loaded {
		return ErrNotLoaded
	}

	data, err := json.MarshalIndent(document{Version: DocumentVersion, Runs: r.history}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("write history %s: %w", r.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history %s: %w", r.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write history %s: %w", r.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write history %s: %w", r.path, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("write history %s: %w", r.path, err)
	}
	return nil
}

// History returns a copy of the in-memory history
func (r *JSONRepository) History() types.History {
	return append(types.History{}, r.history...)
}

func (r *JSONRepository) Close() error {
	return nil
}

func nonNil(h types.History) types.History {
	if h == nil {
		return types.History{}
	}
	return h
}
