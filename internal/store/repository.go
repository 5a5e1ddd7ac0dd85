package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vburojevic/readtime/internal/domain"
)

// Keys under which the repository stores its records.
const (
	KeySession    = "session"
	KeySettings   = "settings"
	KeyDismissals = "dismissals"
)

// Repository reads and writes typed tracker records through a KV.
// Load methods return found=false, not an error, for keys never written.
type Repository struct {
	kv KV
}

// NewRepository wraps kv.
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// LoadSession returns the persisted session state.
func (r *Repository) LoadSession(ctx context.Context) (domain.SessionState, bool, error) {
	var st domain.SessionState
	found, err := r.get(ctx, KeySession, &st)
	return st, found, err
}

// SaveSession persists the session state.
func (r *Repository) SaveSession(ctx context.Context, st domain.SessionState) error {
	st.SchemaVersion = domain.SchemaVersion
	return r.put(ctx, KeySession, st)
}

// LoadSettings returns the persisted settings, normalized into range.
func (r *Repository) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	var s domain.Settings
	found, err := r.get(ctx, KeySettings, &s)
	if !found || err != nil {
		return s, found, err
	}
	return s.Normalize(), true, nil
}

// SaveSettings persists settings after validating them.
func (r *Repository) SaveSettings(ctx context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.put(ctx, KeySettings, s)
}

// LoadDismissals returns the recent-dismissal list.
func (r *Repository) LoadDismissals(ctx context.Context) (domain.Dismissals, bool, error) {
	var d domain.Dismissals
	found, err := r.get(ctx, KeyDismissals, &d)
	if !found || err != nil {
		return d, found, err
	}
	return domain.NewDismissals(d.URLs), true, nil
}

// SaveDismissals persists the recent-dismissal list.
func (r *Repository) SaveDismissals(ctx context.Context, d domain.Dismissals) error {
	return r.put(ctx, KeyDismissals, d)
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	return r.kv.Close()
}

func (r *Repository) get(ctx context.Context, key string, v interface{}) (bool, error) {
	b, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) put(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.kv.Put(ctx, key, b)
}
