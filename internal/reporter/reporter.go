// Package reporter samples local input recency for one context and reports
// active seconds to the session tracker.
package reporter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/filter"
	"github.com/vburojevic/readtime/internal/logging"
	"go.uber.org/zap"
)

// InputKind is a class of user input that counts as activity.
type InputKind string

const (
	InputScroll  InputKind = "scroll"
	InputPointer InputKind = "pointer"
	InputKey     InputKind = "key"
)

// Valid reports whether k is a known input kind.
func (k InputKind) Valid() bool {
	switch k {
	case InputScroll, InputPointer, InputKey:
		return true
	}
	return false
}

// State is the reporter's activity state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Response is the user's answer to the threshold prompt.
type Response string

const (
	ResponseDismiss  Response = "dismiss"
	ResponseCapture  Response = "capture"
	ResponseCopyLink Response = "copy_link"
)

// Defaults used when Options leaves a duration at zero.
const (
	DefaultIdleTimeout  = 60 * time.Second
	DefaultDebounce     = 200 * time.Millisecond
	DefaultTickInterval = time.Second
)

// Sender carries reports to the tracker. The transport client implements it.
type Sender interface {
	Tick(ctx context.Context, contextID string) (domain.TickResult, error)
	Acknowledge(ctx context.Context, url string) error
	Settings(ctx context.Context) (domain.Settings, error)
}

// Prompter presents and hides the threshold prompt in a context.
type Prompter interface {
	Show(contextID string, result domain.TickResult)
	Hide(contextID string)
}

// Actions performs the prompt responses that do not touch the session.
type Actions interface {
	OpenCapture(url string) error
	CopyLink(url string) error
}

type nopPrompter struct{}

func (nopPrompter) Show(string, domain.TickResult) {}
func (nopPrompter) Hide(string)                    {}

type nopActions struct{}

func (nopActions) OpenCapture(string) error { return nil }
func (nopActions) CopyLink(string) error    { return nil }

// Options configures a Reporter.
type Options struct {
	Clock        clock.Clock
	Logger       *zap.Logger
	Prompter     Prompter
	Actions      Actions
	IdleTimeout  time.Duration
	Debounce     time.Duration // negative disables debouncing
	TickInterval time.Duration
}

// Reporter is the per-context Idle/Active state machine. A new reporter
// is visible and enabled but Idle until the first input arrives.
type Reporter struct {
	id       string
	sender   Sender
	clock    clock.Clock
	logger   *zap.Logger
	prompter Prompter
	actions  Actions

	idleTimeout  time.Duration
	tickInterval time.Duration
	debouncer    *filter.Debouncer

	mu        sync.Mutex
	visible   bool
	enabled   bool
	lastInput time.Time
	prompting bool
}

// New creates a reporter for contextID sending through sender.
func New(contextID string, sender Sender, opts Options) *Reporter {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Prompter == nil {
		opts.Prompter = nopPrompter{}
	}
	if opts.Actions == nil {
		opts.Actions = nopActions{}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	switch {
	case opts.Debounce == 0:
		opts.Debounce = DefaultDebounce
	case opts.Debounce < 0:
		opts.Debounce = 0 // record every signal
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Reporter{
		id:           contextID,
		sender:       sender,
		clock:        opts.Clock,
		logger:       logging.Context(opts.Logger.Named("reporter"), contextID),
		prompter:     opts.Prompter,
		actions:      opts.Actions,
		idleTimeout:  opts.IdleTimeout,
		tickInterval: opts.TickInterval,
		debouncer:    filter.NewDebouncer(opts.Debounce),
		visible:      true,
		enabled:      true,
	}
}

// ContextID returns the id this reporter ticks for.
func (r *Reporter) ContextID() string { return r.id }

// Input records a user input signal. Signals of the same kind inside the
// debounce window collapse and leave the last-input time alone. It reports
// whether the signal was recorded.
func (r *Reporter) Input(kind InputKind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unknown input kind %q", kind)
	}
	now := r.clock.Now()
	res := r.debouncer.Check(string(kind), now)
	if !res.ShouldRecord {
		return false, nil
	}
	r.mu.Lock()
	r.lastInput = now
	r.mu.Unlock()
	return true, nil
}

// SetVisible records whether the context is in the foreground.
func (r *Reporter) SetVisible(visible bool) {
	r.mu.Lock()
	r.visible = visible
	r.mu.Unlock()
}

// SetEnabled mirrors the extension-level enabled flag.
func (r *Reporter) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()
}

// State evaluates the state machine at the current clock time.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(r.clock.Now())
}

func (r *Reporter) stateLocked(now time.Time) State {
	if !r.enabled || !r.visible || r.lastInput.IsZero() {
		return Idle
	}
	if now.Sub(r.lastInput) > r.idleTimeout {
		return Idle
	}
	return Active
}

// Prompting reports whether the prompt is currently shown.
func (r *Reporter) Prompting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompting
}

// Run fetches the tracker's settings, then ticks on a fixed cadence until
// ctx is done. Idle seconds are skipped, not queued.
func (r *Reporter) Run(ctx context.Context) error {
	r.SyncSettings(ctx)

	ticker := r.clock.Ticker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.step(ctx)
		}
	}
}

// SyncSettings seeds the enabled flag from the tracker. On failure the
// current value is kept and later settings_changed pushes correct it.
func (r *Reporter) SyncSettings(ctx context.Context) {
	settings, err := r.sender.Settings(ctx)
	if err != nil {
		r.logger.Debug("settings fetch failed", zap.Error(err))
		return
	}
	r.SetEnabled(settings.Enabled)
}

// step runs one cadence iteration and reports whether a tick was sent.
func (r *Reporter) step(ctx context.Context) bool {
	if r.State() != Active {
		return false
	}

	result, err := r.sender.Tick(ctx, r.id)
	if err != nil {
		r.logger.Debug("tick dropped", zap.Error(err))
		return true
	}
	if result.ThresholdReached {
		r.showPrompt(result)
	}
	return true
}

func (r *Reporter) showPrompt(result domain.TickResult) {
	r.mu.Lock()
	already := r.prompting
	r.prompting = true
	r.mu.Unlock()
	if already {
		return
	}
	r.logger.Info("threshold reached", zap.Int("cumulative_active_seconds", result.CumulativeActiveSeconds))
	r.prompter.Show(r.id, result)
}

func (r *Reporter) hidePrompt() {
	r.mu.Lock()
	was := r.prompting
	r.prompting = false
	r.mu.Unlock()
	if was {
		r.prompter.Hide(r.id)
	}
}

// HandlePush applies a push from the tracker.
func (r *Reporter) HandlePush(msg domain.Envelope) {
	switch msg.Type {
	case domain.MsgHideNotification:
		r.hidePrompt()
	case domain.MsgSettingsChanged:
		if msg.Settings != nil {
			r.SetEnabled(msg.Settings.Enabled)
		}
	}
}

// Respond handles the user's answer to the prompt shown for url. Only a
// dismissal reaches the tracker.
func (r *Reporter) Respond(ctx context.Context, resp Response, url string) error {
	switch resp {
	case ResponseDismiss:
		if err := r.sender.Acknowledge(ctx, url); err != nil {
			return fmt.Errorf("acknowledge: %w", err)
		}
		r.hidePrompt()
		return nil
	case ResponseCapture:
		return r.actions.OpenCapture(url)
	case ResponseCopyLink:
		return r.actions.CopyLink(url)
	default:
		return fmt.Errorf("unknown prompt response %q", resp)
	}
}
