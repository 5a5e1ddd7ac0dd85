package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrStopped is returned by calls made after Run has returned.
	ErrStopped = errors.New("tracker stopped")
	// ErrEmptyContextID is returned when a context id is blank.
	ErrEmptyContextID = errors.New("context id is required")
)

const persistTimeout = 2 * time.Second

// Notifier delivers pushes to every connected context.
type Notifier interface {
	Broadcast(msg domain.Envelope)
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(domain.Envelope) {}

// Options configures a Tracker.
type Options struct {
	Clock           clock.Clock
	Logger          *zap.Logger
	Notifier        Notifier
	CoalesceWindow  time.Duration
	DefaultSettings domain.Settings // used when no settings were persisted
}

// Tracker owns the session and serializes every operation on it through
// the goroutine running Run. Callers talk to it only through its methods.
type Tracker struct {
	repo     *store.Repository
	clock    clock.Clock
	logger   *zap.Logger
	notifier Notifier
	opts     Options

	calls chan func()
	done  chan struct{}

	// Owned by the Run goroutine.
	runCtx     context.Context
	session    *Session
	dismissals domain.Dismissals
	degraded   bool
}

// NewTracker creates a tracker persisting through repo. A nil repo keeps
// state in memory only.
func NewTracker(repo *store.Repository, opts Options) *Tracker {
	if repo == nil {
		repo = store.NewRepository(store.NewMemoryKV())
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.DefaultSettings == (domain.Settings{}) {
		opts.DefaultSettings = domain.DefaultSettings()
	}
	return &Tracker{
		repo:     repo,
		clock:    opts.Clock,
		logger:   opts.Logger.Named("tracker"),
		notifier: opts.Notifier,
		opts:     opts,
		calls:    make(chan func()),
		done:     make(chan struct{}),
	}
}

// SetNotifier replaces the push target. It must be called before Run.
func (t *Tracker) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	t.notifier = n
}

// Run reloads persisted state and then serves calls until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.done)

	t.runCtx = ctx
	t.load()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-t.calls:
			fn()
		}
	}
}

// do runs fn on the owner goroutine and waits for it. ctx only bounds the
// hand-off: once fn is accepted it always runs to completion before do
// returns, so results captured by fn are safe to read.
func (t *Tracker) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	call := func() {
		defer close(finished)
		fn()
	}
	select {
	case t.calls <- call:
	case <-t.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Register adds a participating context.
func (t *Tracker) Register(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	return t.do(ctx, func() {
		if t.session.Register(id, t.clock.Now()) {
			t.logger.Debug("context registered", zap.String("context_id", id),
				zap.Int("participating", len(t.session.contexts)))
			t.persistSession()
		}
	})
}

// Unregister removes a participating context, resetting the session when
// it was the last one.
func (t *Tracker) Unregister(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	return t.do(ctx, func() {
		removed, reset := t.session.Unregister(id, t.clock.Now())
		if !removed {
			return
		}
		t.logger.Debug("context unregistered", zap.String("context_id", id))
		if reset {
			t.logEvent(domain.SessionEvent{Reason: "last_context_left", ContextID: id})
		}
		t.persistSession()
	})
}

// Tick records one active second reported by id.
func (t *Tracker) Tick(ctx context.Context, id string) (domain.TickResult, error) {
	id, err := normalizeID(id)
	if err != nil {
		return domain.TickResult{}, err
	}
	var result domain.TickResult
	err = t.do(ctx, func() {
		result = t.session.RecordTick(id, t.clock.Now())
		if !result.Accepted {
			return
		}
		if result.ThresholdReached {
			t.logger.Debug("threshold reached",
				zap.String("context_id", id),
				zap.Int("cumulative_active_seconds", result.CumulativeActiveSeconds))
		}
		t.persistSession()
	})
	return result, err
}

// Acknowledge records that the user dismissed the notification, optionally
// remembering url in the recent-dismissal list. Every context is told to
// hide the prompt.
func (t *Tracker) Acknowledge(ctx context.Context, url string) error {
	return t.do(ctx, func() {
		t.session.Acknowledge(t.clock.Now())
		t.persistSession()
		if strings.TrimSpace(url) != "" {
			t.dismissals.Add(url)
			t.persist("save dismissals", func(pctx context.Context) error {
				return t.repo.SaveDismissals(pctx, t.dismissals)
			})
		}
		t.notifier.Broadcast(domain.Envelope{Type: domain.MsgHideNotification})
	})
}

// Reset zeroes the session and tells every context to hide the prompt.
func (t *Tracker) Reset(ctx context.Context) error {
	return t.do(ctx, func() {
		t.session.Reset(t.clock.Now())
		t.logEvent(domain.SessionEvent{Reason: "explicit_reset"})
		t.persistSession()
		t.notifier.Broadcast(domain.Envelope{Type: domain.MsgHideNotification})
	})
}

// Settings returns the current settings.
func (t *Tracker) Settings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := t.do(ctx, func() {
		s = t.session.Settings()
	})
	return s, err
}

// SetThreshold changes the notification threshold.
func (t *Tracker) SetThreshold(ctx context.Context, seconds int) (domain.Settings, error) {
	if err := domain.ValidateThreshold(seconds); err != nil {
		return domain.Settings{}, err
	}
	return t.updateSettings(ctx, func(s *domain.Settings) { s.ThresholdSeconds = seconds })
}

// SetEnabled turns tracking on or off.
func (t *Tracker) SetEnabled(ctx context.Context, enabled bool) (domain.Settings, error) {
	return t.updateSettings(ctx, func(s *domain.Settings) { s.Enabled = enabled })
}

func (t *Tracker) updateSettings(ctx context.Context, mutate func(*domain.Settings)) (domain.Settings, error) {
	var updated domain.Settings
	err := t.do(ctx, func() {
		prev := t.session.Settings()
		updated = prev
		mutate(&updated)
		if updated == prev {
			return
		}
		t.session.SetSettings(updated)
		t.persist("save settings", func(pctx context.Context) error {
			return t.repo.SaveSettings(pctx, updated)
		})
		t.logger.Info("settings changed",
			zap.Int("threshold_seconds", updated.ThresholdSeconds),
			zap.Bool("enabled", updated.Enabled))
		s := updated
		t.notifier.Broadcast(domain.Envelope{Type: domain.MsgSettingsChanged, Settings: &s})
	})
	return updated, err
}

// Status returns a snapshot of the tracker.
func (t *Tracker) Status(ctx context.Context) (domain.SessionStatus, error) {
	var st domain.SessionStatus
	err := t.do(ctx, func() {
		st = domain.SessionStatus{
			Type:          "status",
			SchemaVersion: domain.SchemaVersion,
			Session:       t.session.State(),
			Settings:      t.session.Settings(),
			Contexts:      t.session.Contexts(),
			Dismissals:    t.dismissals.Len(),
			Degraded:      t.degraded,
		}
	})
	return st, err
}

// load restores persisted state. Any failure starts fresh instead.
func (t *Tracker) load() {
	ctx, cancel := context.WithTimeout(t.runCtx, persistTimeout)
	defer cancel()

	state, found, err := t.repo.LoadSession(ctx)
	if err != nil {
		t.degrade("load session", err)
		state = domain.SessionState{}
	} else if found {
		t.logger.Info("session restored",
			zap.Int("cumulative_active_seconds", state.CumulativeActiveSeconds),
			zap.Bool("notification_acknowledged", state.NotificationAcknowledged))
	}

	settings, found, err := t.repo.LoadSettings(ctx)
	if err != nil {
		t.degrade("load settings", err)
	}
	if err != nil || !found {
		settings = t.opts.DefaultSettings.Normalize()
	}

	dismissals, _, err := t.repo.LoadDismissals(ctx)
	if err != nil {
		t.degrade("load dismissals", err)
		dismissals = domain.Dismissals{}
	}

	t.session = NewSession(state, settings, t.opts.CoalesceWindow)
	t.dismissals = dismissals
}

func (t *Tracker) persistSession() {
	st := t.session.State()
	t.persist("save session", func(ctx context.Context) error {
		return t.repo.SaveSession(ctx, st)
	})
}

// persist runs a write; failures leave the in-memory value in place.
func (t *Tracker) persist(op string, write func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(t.runCtx, persistTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		t.degrade(op, err)
		return
	}
	t.degraded = false
}

func (t *Tracker) degrade(op string, err error) {
	if !t.degraded {
		t.logger.Warn("persistence unavailable, continuing in memory", zap.String("op", op), zap.Error(err))
	} else {
		t.logger.Debug("persistence still unavailable", zap.String("op", op), zap.Error(err))
	}
	t.degraded = true
}

func (t *Tracker) logEvent(ev domain.SessionEvent) {
	ev.Cumulative = t.session.State().CumulativeActiveSeconds
	t.logger.Info("session reset",
		zap.String("reason", ev.Reason),
		zap.String("context_id", ev.ContextID),
		zap.Int("cumulative_active_seconds", ev.Cumulative))
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyContextID
	}
	return id, nil
}
