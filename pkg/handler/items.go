package handler

import (
	"github.com/cuemby/felt/pkg/protocol"
)

func itemMove(c *Context, req protocol.Request) error {
	r := req.(*protocol.ItemMove)
	it, err := c.item(r.ID)
	if err != nil {
		return err
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	if err := c.onTable(it); err != nil {
		return err
	}
	d, err := c.table().MoveItem(r.ID, r.X, r.Y)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeItemMoved, d, nil)
	return nil
}

// itemLock takes the drag lease and raises the item above everything else
func itemLock(c *Context, req protocol.Request) error {
	r := req.(*protocol.ItemLock)
	it, err := c.item(r.ID)
	if err != nil {
		return err
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	if err := c.onTable(it); err != nil {
		return err
	}
	if !c.Session.Leases().Items.Acquire(r.ID, c.ParticipantID) {
		return protocol.Errorf(protocol.KindItemLocked, "item %d is locked", r.ID).WithCurrent(c.current(it))
	}
	d, err := c.table().BumpDepth(r.ID)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeItemLocked, d, func(ch protocol.Change) any {
		return protocol.LockChange{ID: r.ID, Change: ch}
	})
	return nil
}

func itemUnlock(c *Context, req protocol.Request) error {
	r := req.(*protocol.ItemUnlock)
	it, err := c.item(r.ID)
	if err != nil {
		return err
	}
	leases := c.Session.Leases().Items
	switch holder := leases.Holder(r.ID); holder {
	case "":
		// Already expired or released; nothing to announce
		return nil
	case c.ParticipantID:
		leases.Release(r.ID, c.ParticipantID)
	default:
		return protocol.Errorf(protocol.KindItemLocked, "item %d is locked by %s", r.ID, holder).
			WithCurrent(c.current(it))
	}
	c.Session.Broadcast(protocol.NewMessage(protocol.TypeItemUnlocked, protocol.LockChange{
		ID:     r.ID,
		Change: protocol.Change{By: c.ParticipantID},
	}))
	return nil
}

func itemFlip(c *Context, req protocol.Request) error {
	r := req.(*protocol.ItemFlip)
	it, err := c.item(r.ID)
	if err != nil {
		return err
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	if err := c.onTable(it); err != nil {
		return err
	}
	d, err := c.table().FlipItem(r.ID)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeItemFlipped, d, nil)
	return nil
}
