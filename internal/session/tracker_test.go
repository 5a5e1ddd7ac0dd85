package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/store"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []domain.Envelope
}

func (n *recordingNotifier) Broadcast(msg domain.Envelope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) types() []domain.MessageType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.MessageType, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Type)
	}
	return out
}

// failingKV simulates an unavailable persistence layer.
type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingKV) Put(context.Context, string, []byte) error   { return errors.New("disk gone") }
func (failingKV) Close() error                                { return nil }

type harness struct {
	tracker  *Tracker
	clock    *clock.Mock
	notifier *recordingNotifier
	ctx      context.Context
}

func startTracker(t *testing.T, kv store.KV, settings domain.Settings) *harness {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	n := &recordingNotifier{}

	tr := NewTracker(store.NewRepository(kv), Options{
		Clock:           mock,
		Notifier:        n,
		CoalesceWindow:  time.Second,
		DefaultSettings: settings,
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tr.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return &harness{tracker: tr, clock: mock, notifier: n, ctx: context.Background()}
}

func (h *harness) tick(t *testing.T, id string) domain.TickResult {
	t.Helper()
	h.clock.Add(time.Second)
	r, err := h.tracker.Tick(h.ctx, id)
	require.NoError(t, err)
	return r
}

func TestTrackerCountsAcceptedTicks(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))

	for i := 1; i <= 20; i++ {
		r := h.tick(t, "tab-1")
		require.True(t, r.Accepted)
		require.Equal(t, i, r.CumulativeActiveSeconds)
	}

	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, st.Session.CumulativeActiveSeconds)
	assert.Equal(t, "status", st.Type)
	require.Len(t, st.Contexts, 1)
	assert.Equal(t, "tab-1", st.Contexts[0].ID)
}

func TestTrackerThresholdLifecycle(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.Settings{ThresholdSeconds: 30, Enabled: true})
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))

	for i := 1; i < 30; i++ {
		require.False(t, h.tick(t, "tab-1").ThresholdReached)
	}
	assert.True(t, h.tick(t, "tab-1").ThresholdReached)
	assert.True(t, h.tick(t, "tab-1").ThresholdReached)

	require.NoError(t, h.tracker.Acknowledge(h.ctx, "https://demo.substack.com/p/hello"))
	assert.False(t, h.tick(t, "tab-1").ThresholdReached)

	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.True(t, st.Session.NotificationAcknowledged)
	assert.Equal(t, 32, st.Session.CumulativeActiveSeconds)
	assert.Equal(t, 1, st.Dismissals)
	assert.Equal(t, []domain.MessageType{domain.MsgHideNotification}, h.notifier.types())
}

func TestTrackerDisabledTicksDoNotCount(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))
	h.tick(t, "tab-1")

	s, err := h.tracker.SetEnabled(h.ctx, false)
	require.NoError(t, err)
	assert.False(t, s.Enabled)

	for i := 0; i < 5; i++ {
		r := h.tick(t, "tab-1")
		assert.False(t, r.Accepted)
		assert.Equal(t, 1, r.CumulativeActiveSeconds)
	}

	require.Equal(t, []domain.MessageType{domain.MsgSettingsChanged}, h.notifier.types())
	h.notifier.mu.Lock()
	pushed := h.notifier.msgs[0].Settings
	h.notifier.mu.Unlock()
	require.NotNil(t, pushed)
	assert.False(t, pushed.Enabled)
}

func TestTrackerUnregisterLastContextResets(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))
	require.NoError(t, h.tracker.Register(h.ctx, "tab-2"))
	h.tick(t, "tab-1")
	h.tick(t, "tab-2")
	require.NoError(t, h.tracker.Acknowledge(h.ctx, ""))

	require.NoError(t, h.tracker.Unregister(h.ctx, "tab-1"))
	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Session.CumulativeActiveSeconds)

	require.NoError(t, h.tracker.Unregister(h.ctx, "tab-2"))
	require.NoError(t, h.tracker.Unregister(h.ctx, "tab-2"))
	st, err = h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Session.CumulativeActiveSeconds)
	assert.False(t, st.Session.NotificationAcknowledged)
	assert.Empty(t, st.Contexts)
}

func TestTrackerCoalescesAcrossContexts(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))
	require.NoError(t, h.tracker.Register(h.ctx, "tab-2"))

	for i := 0; i < 10; i++ {
		h.clock.Add(time.Second)
		a, err := h.tracker.Tick(h.ctx, "tab-1")
		require.NoError(t, err)
		b, err := h.tracker.Tick(h.ctx, "tab-2")
		require.NoError(t, err)
		assert.True(t, a.Accepted)
		assert.False(t, b.Accepted)
	}

	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Session.CumulativeActiveSeconds)
}

func TestTrackerResetThenTick(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))
	for i := 0; i < 5; i++ {
		h.tick(t, "tab-1")
	}

	require.NoError(t, h.tracker.Reset(h.ctx))
	r, err := h.tracker.Tick(h.ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.CumulativeActiveSeconds)
	assert.Equal(t, []domain.MessageType{domain.MsgHideNotification}, h.notifier.types())
}

func TestTrackerSetThreshold(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())

	_, err := h.tracker.SetThreshold(h.ctx, 10)
	require.ErrorIs(t, err, domain.ErrThresholdOutOfRange)

	s, err := h.tracker.SetThreshold(h.ctx, 600)
	require.NoError(t, err)
	assert.Equal(t, 600, s.ThresholdSeconds)

	got, err := h.tracker.Settings(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{ThresholdSeconds: 600, Enabled: true}, got)
	assert.Equal(t, []domain.MessageType{domain.MsgSettingsChanged}, h.notifier.types())

	// unchanged value: no write, no push
	_, err = h.tracker.SetThreshold(h.ctx, 600)
	require.NoError(t, err)
	assert.Len(t, h.notifier.types(), 1)
}

func TestTrackerReloadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	kv, err := store.NewFileKV(path)
	require.NoError(t, err)

	{
		mock := clock.NewMock()
		tr := NewTracker(store.NewRepository(kv), Options{Clock: mock, CoalesceWindow: time.Second})
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			tr.Run(ctx)
		}()

		require.NoError(t, tr.Register(ctx, "tab-1"))
		for i := 0; i < 7; i++ {
			mock.Add(time.Second)
			_, err := tr.Tick(ctx, "tab-1")
			require.NoError(t, err)
		}
		_, err = tr.SetThreshold(ctx, 120)
		require.NoError(t, err)
		require.NoError(t, tr.Acknowledge(ctx, "https://demo.substack.com/p/1"))
		cancel()
		<-stopped
	}

	reopened, err := store.NewFileKV(path)
	require.NoError(t, err)
	h := startTracker(t, reopened, domain.DefaultSettings())

	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Session.CumulativeActiveSeconds)
	assert.True(t, st.Session.NotificationAcknowledged)
	assert.Equal(t, 120, st.Settings.ThresholdSeconds)
	assert.Equal(t, 1, st.Dismissals)
	assert.False(t, st.Degraded)
}

func TestTrackerSurvivesPersistenceFailure(t *testing.T) {
	h := startTracker(t, failingKV{}, domain.Settings{ThresholdSeconds: 30, Enabled: true})

	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.True(t, st.Degraded)
	assert.Equal(t, 0, st.Session.CumulativeActiveSeconds)
	assert.Equal(t, 30, st.Settings.ThresholdSeconds)

	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))
	for i := 1; i <= 3; i++ {
		assert.Equal(t, i, h.tick(t, "tab-1").CumulativeActiveSeconds)
	}
	_, err = h.tracker.SetEnabled(h.ctx, false)
	require.NoError(t, err)
	s, err := h.tracker.Settings(h.ctx)
	require.NoError(t, err)
	assert.False(t, s.Enabled)
}

func TestTrackerRejectsEmptyContextID(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.ErrorIs(t, h.tracker.Register(h.ctx, "  "), ErrEmptyContextID)
	_, err := h.tracker.Tick(h.ctx, "")
	require.ErrorIs(t, err, ErrEmptyContextID)
}

func TestTrackerStopped(t *testing.T) {
	tr := NewTracker(nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tr.Run(ctx)
	}()
	require.NoError(t, tr.Register(context.Background(), "tab-1"))
	cancel()
	<-stopped

	_, err := tr.Tick(context.Background(), "tab-1")
	require.ErrorIs(t, err, ErrStopped)
}

func TestTrackerCallerContextCancelled(t *testing.T) {
	tr := NewTracker(nil, Options{})
	// Run never started, so the call cannot be delivered.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tr.Register(ctx, "tab-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrackerCancelledCallsNeverTearResults(t *testing.T) {
	h := startTracker(t, store.NewMemoryKV(), domain.DefaultSettings())
	require.NoError(t, h.tracker.Register(h.ctx, "tab-1"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			go cancel()
			r, err := h.tracker.Tick(ctx, "tab-1")
			if err != nil {
				assert.ErrorIs(t, err, context.Canceled)
				assert.Equal(t, domain.TickResult{}, r)
				return
			}
			assert.Equal(t, "tab-1", r.ContextID)

			st, err := h.tracker.Status(ctx)
			if err == nil {
				assert.Equal(t, "status", st.Type)
			}
		}()
	}
	wg.Wait()

	st, err := h.tracker.Status(h.ctx)
	require.NoError(t, err)
	assert.Len(t, st.Contexts, 1)
}
