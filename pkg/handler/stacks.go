package handler

import (
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/table"
)

// stackCreate gathers table items, and items from the caller's own hand, into
// a new free stack.
func stackCreate(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackCreate)
	fromHand := false
	for _, id := range r.ItemIDs {
		it, err := c.item(id)
		if err != nil {
			return err
		}
		if err := c.itemFree(it); err != nil {
			return err
		}
		if err := c.notOthers(it); err != nil {
			return err
		}
		if it.HolderID != "" {
			fromHand = true
		}
	}

	id, d, err := c.table().CreateStack(r.ItemIDs, r.X, r.Y)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeStackCreated, d, func(ch protocol.Change) any {
		return protocol.StackCreated{StackID: id, Change: ch}
	})
	if fromHand {
		c.handChanged(table.Delta{}, nil)
	}
	return nil
}

func stackMove(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackMove)
	if _, err := c.stack(r.ID); err != nil {
		return err
	}
	if err := c.stackFree(r.ID); err != nil {
		return err
	}
	d, err := c.table().MoveStack(r.ID, r.X, r.Y, r.Detach)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeStackMoved, d, nil)
	return nil
}

// stackLock takes the drag lease on a whole stack and raises its cards
func stackLock(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackLock)
	s, err := c.stack(r.ID)
	if err != nil {
		return err
	}
	if err := c.stackFree(r.ID); err != nil {
		return err
	}
	if !c.Session.Leases().Stacks.Acquire(r.ID, c.ParticipantID) {
		return c.stackFree(r.ID)
	}
	d, err := c.table().BumpDepth(s.Items...)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeStackLocked, d, func(ch protocol.Change) any {
		return protocol.LockChange{ID: r.ID, Change: ch}
	})
	return nil
}

func stackUnlock(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackUnlock)
	if _, err := c.stack(r.ID); err != nil {
		return err
	}
	leases := c.Session.Leases().Stacks
	switch leases.Holder(r.ID) {
	case "":
		return nil
	case c.ParticipantID:
		leases.Release(r.ID, c.ParticipantID)
	default:
		return c.stackFree(r.ID)
	}
	c.Session.Broadcast(protocol.NewMessage(protocol.TypeStackUnlocked, protocol.LockChange{
		ID:     r.ID,
		Change: protocol.Change{By: c.ParticipantID},
	}))
	return nil
}

// stackAddItem drops an item on top of a stack. The item's own drag lease
// ends with the drop.
func stackAddItem(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackAddItem)
	if _, err := c.stack(r.ID); err != nil {
		return err
	}
	it, err := c.item(r.ItemID)
	if err != nil {
		return err
	}
	if err := c.stackFree(r.ID); err != nil {
		return err
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	if err := c.notOthers(it); err != nil {
		return err
	}

	d, err := c.table().AddToStack(r.ID, r.ItemID)
	if err != nil {
		return err
	}
	c.dropItemLease(r.ItemID)
	c.commit(protocol.TypeStackUpdated, d, nil)
	if it.HolderID != "" {
		c.handChanged(table.Delta{}, nil)
	}
	return nil
}

func stackRemoveItem(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackRemoveItem)
	it, err := c.item(r.ItemID)
	if err != nil {
		return err
	}
	if it.StackID == 0 {
		return protocol.Errorf(protocol.KindInvalid, "item %d is not in a stack", r.ItemID)
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	d, err := c.table().RemoveFromStack(r.ItemID)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeStackUpdated, d, nil)
	return nil
}

// stackMerge drops source onto target. Source's lease goes away with it.
func stackMerge(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackMerge)
	if _, err := c.stack(r.SourceID); err != nil {
		return err
	}
	if _, err := c.stack(r.TargetID); err != nil {
		return err
	}
	if err := c.stackFree(r.SourceID); err != nil {
		return err
	}
	if err := c.stackFree(r.TargetID); err != nil {
		return err
	}

	d, err := c.table().MergeStacks(r.SourceID, r.TargetID)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeStackMerged, d, func(ch protocol.Change) any {
		return protocol.StackMerged{SourceID: r.SourceID, TargetID: r.TargetID, Change: ch}
	})
	return nil
}

func stackShuffle(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackShuffle)
	return c.stackEdit(r.ID, func() (table.Delta, error) {
		return c.table().ShuffleStack(r.ID)
	})
}

func stackFlip(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackFlip)
	return c.stackEdit(r.ID, func() (table.Delta, error) {
		return c.table().FlipStack(r.ID)
	})
}

func stackSetFaces(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackSetFaces)
	return c.stackEdit(r.ID, func() (table.Delta, error) {
		return c.table().SetStackFaces(r.ID, r.FaceUp)
	})
}

func stackReorder(c *Context, req protocol.Request) error {
	r := req.(*protocol.StackReorder)
	return c.stackEdit(r.ID, func() (table.Delta, error) {
		return c.table().ReorderStack(r.ID, r.From, r.To)
	})
}

// stackEdit runs an in-place stack mutation and broadcasts stack_updated
func (c *Context) stackEdit(id int, apply func() (table.Delta, error)) error {
	if _, err := c.stack(id); err != nil {
		return err
	}
	if err := c.stackFree(id); err != nil {
		return err
	}
	d, err := apply()
	if err != nil {
		return err
	}
	c.commit(protocol.TypeStackUpdated, d, nil)
	return nil
}
