package handler

import (
	"errors"

	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/session"
	"github.com/cuemby/felt/pkg/table"
	"github.com/cuemby/felt/pkg/types"
)

// Context is what a handler knows about the intent it is applying. It is only
// valid inside the session loop.
type Context struct {
	Session       *session.Session
	ParticipantID string
	ConnID        string
}

func (c *Context) table() *table.Table { return c.Session.Table() }

// item returns the item as the caller may see it, or NOT_FOUND
func (c *Context) item(id int) (types.Item, error) {
	it, ok := c.table().Item(id)
	if !ok {
		return types.Item{}, protocol.Errorf(protocol.KindNotFound, "item %d not found", id)
	}
	return it, nil
}

func (c *Context) stack(id int) (types.Stack, error) {
	s, ok := c.table().Stack(id)
	if !ok {
		return types.Stack{}, protocol.Errorf(protocol.KindNotFound, "stack %d not found", id)
	}
	return s, nil
}

func (c *Context) zone(id int) (types.Zone, error) {
	z, ok := c.table().Zone(id)
	if !ok {
		return types.Zone{}, protocol.Errorf(protocol.KindNotFound, "zone %d not found", id)
	}
	return z, nil
}

// current is the snap-back view of an item for the caller
func (c *Context) current(it types.Item) types.Item {
	d := c.table().Project(table.Delta{Items: []types.Item{it}}, c.ParticipantID)
	v := d.Items[0]
	v.LockedBy = c.Session.Leases().Items.Holder(it.ID)
	return v
}

// itemFree rejects when someone else holds the item, or the stack it sits in
func (c *Context) itemFree(it types.Item) error {
	leases := c.Session.Leases()
	if holder, busy := leases.Items.HeldByOther(it.ID, c.ParticipantID); busy {
		return protocol.Errorf(protocol.KindItemLocked, "item %d is locked by %s", it.ID, holder).
			WithCurrent(c.current(it))
	}
	if it.StackID != 0 {
		if err := c.stackFree(it.StackID); err != nil {
			return err
		}
	}
	return nil
}

// stackFree rejects when someone else holds the stack
func (c *Context) stackFree(id int) error {
	holder, busy := c.Session.Leases().Stacks.HeldByOther(id, c.ParticipantID)
	if !busy {
		return nil
	}
	perr := protocol.Errorf(protocol.KindStackLocked, "stack %d is locked by %s", id, holder)
	if s, ok := c.table().Stack(id); ok {
		s.LockedBy = holder
		perr.WithCurrent(s)
	}
	return perr
}

// onTable rejects items sitting in a hand. Another player's card is never
// revealed in the rejection.
func (c *Context) onTable(it types.Item) error {
	switch it.HolderID {
	case "":
		return nil
	case c.ParticipantID:
		return protocol.Errorf(protocol.KindInvalid, "item %d is in your hand", it.ID)
	}
	return protocol.Errorf(protocol.KindNotYourItem, "item %d is in another hand", it.ID)
}

// notOthers allows table items and the caller's own hand
func (c *Context) notOthers(it types.Item) error {
	if it.HolderID != "" && it.HolderID != c.ParticipantID {
		return protocol.Errorf(protocol.KindNotYourItem, "item %d is in another hand", it.ID)
	}
	return nil
}

func (c *Context) change(d table.Delta) protocol.Change {
	return protocol.Change{By: c.ParticipantID, Delta: d}
}

// commit records a mutation and fans it out. When any item in the delta sits
// in a zone that hides faces, every viewer gets a separately projected copy.
func (c *Context) commit(rt protocol.ResponseType, d table.Delta, wrap func(protocol.Change) any) {
	s := c.Session
	for _, id := range d.DeletedStacks {
		s.Leases().Stacks.Drop(id)
	}
	s.Touch()

	if wrap == nil {
		wrap = func(ch protocol.Change) any { return ch }
	}
	t := c.table()
	if !t.NeedsProjection(d) {
		s.Broadcast(protocol.NewMessage(rt, wrap(c.change(d))))
		return
	}
	s.BroadcastEach(func(viewer string) protocol.Message {
		return protocol.NewMessage(rt, wrap(c.change(t.Project(d, viewer))))
	})
}

// handChanged sends the caller its full hand and everyone else a count.
// removed lists items that left the table for the hand.
func (c *Context) handChanged(d table.Delta, removed []int) {
	s := c.Session
	t := c.table()
	for _, id := range d.DeletedStacks {
		s.Leases().Stacks.Drop(id)
	}
	s.Touch()

	me := c.ParticipantID
	s.SendTo(me, protocol.NewMessage(protocol.TypeHandUpdated, protocol.HandUpdated{
		Items:  t.Hand(me),
		Change: c.change(t.Project(d, me)),
	}))
	count := t.HandCount(me)
	s.BroadcastEachExcept(me, func(viewer string) protocol.Message {
		return protocol.NewMessage(protocol.TypeHandCount, protocol.HandCount{
			PlayerID: me,
			Count:    count,
			Removed:  removed,
			Change:   c.change(t.Project(d, viewer)),
		})
	})
}

// dropItemLease releases the caller's lease on an item that left the table
func (c *Context) dropItemLease(ids ...int) {
	s := c.Session
	for _, id := range ids {
		holder := s.Leases().Items.Holder(id)
		if holder == "" {
			continue
		}
		s.Leases().Items.Drop(id)
		s.Broadcast(protocol.NewMessage(protocol.TypeItemUnlocked, protocol.LockChange{ID: id}))
	}
}

// tableError maps table sentinel errors onto protocol rejections. Anything
// already a rejection passes through untouched.
func tableError(err error) error {
	if err == nil {
		return nil
	}
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, table.ErrNotFound):
		return protocol.Errorf(protocol.KindNotFound, "%v", err)
	case errors.Is(err, table.ErrNotHolder):
		return protocol.Errorf(protocol.KindNotInHand, "%v", err)
	case errors.Is(err, table.ErrAlreadyHeld):
		return protocol.Errorf(protocol.KindNotYourItem, "%v", err)
	case errors.Is(err, table.ErrInvalid):
		return protocol.Errorf(protocol.KindInvalid, "%v", err)
	}
	return protocol.Errorf(protocol.KindInternal, "internal error")
}
