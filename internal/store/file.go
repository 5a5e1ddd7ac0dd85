package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vburojevic/readtime/internal/domain"
)

// stateFile is the on-disk layout of FileKV.
type stateFile struct {
	Type          string                     `json:"type"` // "readtime_state"
	SchemaVersion int                        `json:"schemaVersion"`
	UpdatedAt     string                     `json:"updated_at,omitempty"`
	Values        map[string]json.RawMessage `json:"values"`
}

// FileKV stores every key in a single JSON document. Writes go to a temp
// file that is renamed over the original.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileKV returns a store backed by path. The file is created lazily.
func NewFileKV(path string) (*FileKV, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileKV{path: path}, nil
}

// Path returns the backing file.
func (f *FileKV) Path() string { return f.path }

func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.load()
	if err != nil {
		return nil, err
	}
	v, ok := st.Values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *FileKV) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.load()
	if err != nil {
		return err
	}
	st.Values[key] = json.RawMessage(append([]byte(nil), value...))
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return f.save(st)
}

func (f *FileKV) Close() error { return nil }

func (f *FileKV) load() (*stateFile, error) {
	st := &stateFile{
		Type:          "readtime_state",
		SchemaVersion: domain.SchemaVersion,
		Values:        map[string]json.RawMessage{},
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	if st.Values == nil {
		st.Values = map[string]json.RawMessage{}
	}
	return st, nil
}

func (f *FileKV) save(st *stateFile) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".readtime-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
