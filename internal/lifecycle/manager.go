// Package lifecycle turns host tab events into tracker registrations.
package lifecycle

import (
	"context"
	"sync"

	"github.com/vburojevic/readtime/internal/detect"
	"github.com/vburojevic/readtime/internal/domain"
	"go.uber.org/zap"
)

// Registrar is the subset of the tracker the manager drives.
type Registrar interface {
	Register(ctx context.Context, id string) error
	Unregister(ctx context.Context, id string) error
}

// Manager consumes context lifecycle events and keeps the tracker's
// participating set in line with what each context is showing.
type Manager struct {
	classifier *detect.Classifier
	registrar  Registrar
	logger     *zap.Logger

	mu      sync.Mutex
	tracked map[string]bool
}

// NewManager wires a classifier to a registrar.
func NewManager(classifier *detect.Classifier, registrar Registrar, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		classifier: classifier,
		registrar:  registrar,
		logger:     logger.Named("lifecycle"),
		tracked:    make(map[string]bool),
	}
}

// OnContextEntered classifies a newly opened context and registers it
// when it shows tracked content. It reports whether the context is tracked.
func (m *Manager) OnContextEntered(ctx context.Context, id string, page domain.Page) (bool, error) {
	return m.apply(ctx, id, page, "entered")
}

// OnContextNavigated reclassifies a context after navigation. Leaving the
// tracked site unregisters it; arriving registers it.
func (m *Manager) OnContextNavigated(ctx context.Context, id string, page domain.Page) (bool, error) {
	return m.apply(ctx, id, page, "navigated")
}

// OnContextLeft unregisters a closed context. The id is unregistered even
// when it joined through a plain register request; unregistering an unknown
// id is a no-op in the tracker.
func (m *Manager) OnContextLeft(ctx context.Context, id string) error {
	m.mu.Lock()
	wasTracked := m.tracked[id]
	delete(m.tracked, id)
	m.mu.Unlock()

	m.logger.Debug("context left", zap.String("context_id", id), zap.Bool("classified", wasTracked))
	return m.registrar.Unregister(ctx, id)
}

// Tracked reports whether id is currently registered through the manager.
func (m *Manager) Tracked(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracked[id]
}

func (m *Manager) apply(ctx context.Context, id string, page domain.Page, event string) (bool, error) {
	verdict := m.classifier.Classify(page)

	m.mu.Lock()
	wasTracked := m.tracked[id]
	if verdict.Tracked {
		m.tracked[id] = true
	} else {
		delete(m.tracked, id)
	}
	m.mu.Unlock()

	m.logger.Debug("context classified",
		zap.String("event", event),
		zap.String("context_id", id),
		zap.String("url", page.URL),
		zap.Strings("signals", verdict.Signals),
		zap.Bool("tracked", verdict.Tracked))

	switch {
	case verdict.Tracked && !wasTracked:
		return true, m.registrar.Register(ctx, id)
	case !verdict.Tracked && wasTracked:
		return false, m.registrar.Unregister(ctx, id)
	}
	return verdict.Tracked, nil
}
