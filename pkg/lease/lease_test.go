package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(30*time.Second, clock.Now), clock
}

func TestAcquireConflict(t *testing.T) {
	m, _ := newTestManager()

	require.True(t, m.Items.Acquire(5, "alice"))
	assert.False(t, m.Items.Acquire(5, "bob"), "second holder must be rejected")
	assert.Equal(t, "alice", m.Items.Holder(5))
}

func TestAcquireSucceedsAfterTTLWithoutRelease(t *testing.T) {
	m, clock := newTestManager()

	require.True(t, m.Items.Acquire(5, "alice"))
	clock.Advance(29 * time.Second)
	assert.False(t, m.Items.Acquire(5, "bob"))

	clock.Advance(time.Second)
	assert.True(t, m.Items.Acquire(5, "bob"))
	assert.Equal(t, "bob", m.Items.Holder(5))
}

func TestReacquireRefreshesExpiry(t *testing.T) {
	m, clock := newTestManager()

	require.True(t, m.Stacks.Acquire(1, "alice"))
	clock.Advance(20 * time.Second)
	require.True(t, m.Stacks.Acquire(1, "alice"))
	clock.Advance(20 * time.Second)

	assert.Equal(t, "alice", m.Stacks.Holder(1))
	assert.False(t, m.Stacks.Acquire(1, "bob"))
}

func TestReleaseOnlyByHolder(t *testing.T) {
	m, _ := newTestManager()
	require.True(t, m.Items.Acquire(3, "alice"))

	assert.False(t, m.Items.Release(3, "bob"))
	assert.False(t, m.Items.Release(3, ""))
	assert.True(t, m.Items.Release(3, "alice"))
	assert.Equal(t, "", m.Items.Holder(3))
	assert.False(t, m.Items.Release(3, "alice"), "double release fails")
}

func TestHolderClearsStaleEntry(t *testing.T) {
	m, clock := newTestManager()
	require.True(t, m.Items.Acquire(9, "alice"))
	clock.Advance(time.Minute)

	assert.Equal(t, "", m.Items.Holder(9))
	assert.Equal(t, 0, m.Items.Len())
}

func TestItemAndStackTablesAreIndependent(t *testing.T) {
	m, _ := newTestManager()
	require.True(t, m.Items.Acquire(1, "alice"))
	assert.True(t, m.Stacks.Acquire(1, "bob"))
}

func TestReleaseAllFor(t *testing.T) {
	m, _ := newTestManager()
	m.Items.Acquire(4, "alice")
	m.Items.Acquire(2, "alice")
	m.Items.Acquire(3, "bob")
	m.Stacks.Acquire(7, "alice")

	freed := m.ReleaseAllFor("alice")

	assert.Equal(t, []int{2, 4}, freed.Items)
	assert.Equal(t, []int{7}, freed.Stacks)
	assert.Equal(t, "bob", m.Items.Holder(3))
	assert.Equal(t, 1, m.Active())
}

func TestSweep(t *testing.T) {
	m, clock := newTestManager()
	m.Items.Acquire(1, "alice")
	clock.Advance(20 * time.Second)
	m.Items.Acquire(2, "bob")
	m.Stacks.Acquire(3, "bob")
	clock.Advance(15 * time.Second)

	freed := m.Sweep()

	assert.Equal(t, []int{1}, freed.Items)
	assert.Empty(t, freed.Stacks)
	assert.Equal(t, 2, m.Active())
	assert.False(t, freed.Empty())
	assert.True(t, m.Sweep().Empty())
}

func TestHeldByOther(t *testing.T) {
	m, _ := newTestManager()
	m.Items.Acquire(1, "alice")

	holder, other := m.Items.HeldByOther(1, "bob")
	assert.True(t, other)
	assert.Equal(t, "alice", holder)

	_, other = m.Items.HeldByOther(1, "alice")
	assert.False(t, other)

	_, other = m.Items.HeldByOther(2, "alice")
	assert.False(t, other)
}

func TestDefaults(t *testing.T) {
	m := NewManager(0, nil)
	assert.True(t, m.Items.Acquire(1, "a"))
	assert.Equal(t, DefaultTTL, m.Items.ttl)
}
