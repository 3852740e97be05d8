// Package lease tracks short-lived exclusive claims on items and stacks.
package lease

import (
	"sort"
	"time"
)

const (
	// DefaultTTL is how long a lease lives after its last acquire or refresh
	DefaultTTL = 30 * time.Second

	// DefaultSweepInterval is how often expired leases are proactively cleared
	DefaultSweepInterval = 5 * time.Second
)

// Lease is an exclusive, time-bounded claim on one subject
type Lease struct {
	Subject   int
	Holder    string
	ExpiresAt time.Time
}

// Table holds at most one active lease per subject.
// It is not safe for concurrent use; its owning session serializes access.
type Table struct {
	ttl    time.Duration
	now    func() time.Time
	leases map[int]*Lease
}

func newTable(ttl time.Duration, now func() time.Time) *Table {
	return &Table{
		ttl:    ttl,
		now:    now,
		leases: make(map[int]*Lease),
	}
}

// Acquire grants the lease on subject to holder. It fails only when another
// holder owns an unexpired lease. Re-acquiring refreshes the expiry.
func (t *Table) Acquire(subject int, holder string) bool {
	now := t.now()
	if l, ok := t.leases[subject]; ok && l.Holder != holder && now.Before(l.ExpiresAt) {
		return false
	}
	t.leases[subject] = &Lease{
		Subject:   subject,
		Holder:    holder,
		ExpiresAt: now.Add(t.ttl),
	}
	return true
}

// Release drops the lease if holder currently owns it
func (t *Table) Release(subject int, holder string) bool {
	if t.Holder(subject) != holder || holder == "" {
		return false
	}
	delete(t.leases, subject)
	return true
}

// Holder returns the current holder of subject, or "" when the subject is
// free. A stale entry is cleared on the way out.
func (t *Table) Holder(subject int) string {
	l, ok := t.leases[subject]
	if !ok {
		return ""
	}
	if !t.now().Before(l.ExpiresAt) {
		delete(t.leases, subject)
		return ""
	}
	return l.Holder
}

// HeldByOther reports whether someone other than holder owns subject
func (t *Table) HeldByOther(subject int, holder string) (string, bool) {
	h := t.Holder(subject)
	return h, h != "" && h != holder
}

// Drop removes any lease on subject regardless of holder
func (t *Table) Drop(subject int) {
	delete(t.leases, subject)
}

// Len returns the number of entries, including ones not yet swept
func (t *Table) Len() int {
	return len(t.leases)
}

// Holders returns every unexpired lease as subject -> holder
func (t *Table) Holders() map[int]string {
	now := t.now()
	out := make(map[int]string, len(t.leases))
	for id, l := range t.leases {
		if now.Before(l.ExpiresAt) {
			out[id] = l.Holder
		}
	}
	return out
}

func (t *Table) releaseAll(holder string) []int {
	var freed []int
	for id, l := range t.leases {
		if l.Holder == holder {
			delete(t.leases, id)
			freed = append(freed, id)
		}
	}
	sort.Ints(freed)
	return freed
}

func (t *Table) sweep(now time.Time) []int {
	var freed []int
	for id, l := range t.leases {
		if !now.Before(l.ExpiresAt) {
			delete(t.leases, id)
			freed = append(freed, id)
		}
	}
	sort.Ints(freed)
	return freed
}

func (t *Table) clear() {
	t.leases = make(map[int]*Lease)
}

// Freed lists subjects whose leases were removed in one call
type Freed struct {
	Items  []int
	Stacks []int
}

// Empty reports whether nothing was freed
func (f Freed) Empty() bool {
	return len(f.Items) == 0 && len(f.Stacks) == 0
}

// Manager keeps item leases and stack leases in separate tables
type Manager struct {
	Items  *Table
	Stacks *Table
	now    func() time.Time
}

// NewManager creates a lease manager. A zero ttl selects DefaultTTL and a nil
// clock selects time.Now.
func NewManager(ttl time.Duration, now func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		Items:  newTable(ttl, now),
		Stacks: newTable(ttl, now),
		now:    now,
	}
}

// ReleaseAllFor removes every lease owned by holder
func (m *Manager) ReleaseAllFor(holder string) Freed {
	return Freed{
		Items:  m.Items.releaseAll(holder),
		Stacks: m.Stacks.releaseAll(holder),
	}
}

// Sweep clears every expired lease
func (m *Manager) Sweep() Freed {
	now := m.now()
	return Freed{
		Items:  m.Items.sweep(now),
		Stacks: m.Stacks.sweep(now),
	}
}

// Reset drops every lease, used when the table is reset
func (m *Manager) Reset() {
	m.Items.clear()
	m.Stacks.clear()
}

// Active returns the number of leases currently stored
func (m *Manager) Active() int {
	return m.Items.Len() + m.Stacks.Len()
}
