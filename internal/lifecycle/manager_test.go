package lifecycle

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/readtime/internal/config"
	"github.com/vburojevic/readtime/internal/detect"
	"github.com/vburojevic/readtime/internal/domain"
)

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRegistrar) Register(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "register:"+id)
	return nil
}

func (f *fakeRegistrar) Unregister(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "unregister:"+id)
	return nil
}

var (
	article = domain.Page{URL: "https://demo.substack.com/p/essay"}
	archive = domain.Page{URL: "https://demo.substack.com/archive"}
	offsite = domain.Page{URL: "https://news.ycombinator.com/"}
)

func newManager(t *testing.T) (*Manager, *fakeRegistrar) {
	t.Helper()
	c, err := detect.NewClassifier(config.Default().Site)
	require.NoError(t, err)
	reg := &fakeRegistrar{}
	return NewManager(c, reg, nil), reg
}

func TestManagerEnteredTrackedRegisters(t *testing.T) {
	m, reg := newManager(t)
	ctx := context.Background()

	tracked, err := m.OnContextEntered(ctx, "tab-1", article)
	require.NoError(t, err)
	assert.True(t, tracked)

	tracked, err = m.OnContextEntered(ctx, "tab-2", offsite)
	require.NoError(t, err)
	assert.False(t, tracked)

	assert.Equal(t, []string{"register:tab-1"}, reg.calls)
	assert.True(t, m.Tracked("tab-1"))
	assert.False(t, m.Tracked("tab-2"))
}

func TestManagerNavigationAwayAndBack(t *testing.T) {
	m, reg := newManager(t)
	ctx := context.Background()

	_, err := m.OnContextEntered(ctx, "tab-1", article)
	require.NoError(t, err)
	// same tracked page again: no duplicate registration
	_, err = m.OnContextNavigated(ctx, "tab-1", domain.Page{URL: "https://demo.substack.com/p/other"})
	require.NoError(t, err)
	_, err = m.OnContextNavigated(ctx, "tab-1", archive)
	require.NoError(t, err)
	_, err = m.OnContextNavigated(ctx, "tab-1", article)
	require.NoError(t, err)

	assert.Equal(t, []string{"register:tab-1", "unregister:tab-1", "register:tab-1"}, reg.calls)
}

func TestManagerLeft(t *testing.T) {
	m, reg := newManager(t)
	ctx := context.Background()

	_, err := m.OnContextEntered(ctx, "tab-1", article)
	require.NoError(t, err)
	require.NoError(t, m.OnContextLeft(ctx, "tab-1"))
	require.NoError(t, m.OnContextLeft(ctx, "tab-1"))
	require.NoError(t, m.OnContextLeft(ctx, "never-seen"))

	// leaving always reaches the registrar, which ignores unknown ids
	assert.Equal(t, []string{"register:tab-1", "unregister:tab-1", "unregister:tab-1", "unregister:never-seen"}, reg.calls)
	assert.False(t, m.Tracked("tab-1"))
}
