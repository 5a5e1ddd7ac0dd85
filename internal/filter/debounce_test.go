package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCollapsesWithinWindow(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := d.Check("scroll", base)
	assert.True(t, first.ShouldRecord)

	for i := 1; i <= 3; i++ {
		r := d.Check("scroll", base.Add(time.Duration(i)*50*time.Millisecond))
		assert.False(t, r.ShouldRecord)
		assert.Equal(t, i, r.Collapsed)
		assert.Equal(t, base, r.RecordedAt)
	}

	// window measured from the recorded signal, not the last collapsed one
	later := d.Check("scroll", base.Add(200*time.Millisecond))
	assert.True(t, later.ShouldRecord)
	assert.Equal(t, base.Add(200*time.Millisecond), later.RecordedAt)
}

func TestDebouncerKindsAreIndependent(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, d.Check("scroll", now).ShouldRecord)
	assert.True(t, d.Check("key", now.Add(10*time.Millisecond)).ShouldRecord)
	assert.False(t, d.Check("scroll", now.Add(20*time.Millisecond)).ShouldRecord)
}

func TestDebouncerZeroWindowRecordsEverything(t *testing.T) {
	d := NewDebouncer(0)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, d.Check("pointer", now).ShouldRecord)
	assert.True(t, d.Check("pointer", now).ShouldRecord)
}

func TestDebouncerReset(t *testing.T) {
	d := NewDebouncer(time.Second)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.Check("key", now)
	d.Reset()
	assert.True(t, d.Check("key", now).ShouldRecord)
}
