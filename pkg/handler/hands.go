package handler

import (
	"github.com/cuemby/felt/pkg/protocol"
)

// handAdd picks a table item up into the caller's hand. The owner sees the
// card; everyone else only learns that it left the table.
func handAdd(c *Context, req protocol.Request) error {
	r := req.(*protocol.HandAdd)
	it, err := c.item(r.ItemID)
	if err != nil {
		return err
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	if err := c.onTable(it); err != nil {
		return err
	}

	d, err := c.table().AddToHand(c.ParticipantID, r.ItemID)
	if err != nil {
		return err
	}
	c.dropItemLease(r.ItemID)
	c.handChanged(d, []int{r.ItemID})
	return nil
}

// handRemove plays a card from the caller's hand onto the table
func handRemove(c *Context, req protocol.Request) error {
	r := req.(*protocol.HandRemove)
	it, err := c.item(r.ItemID)
	if err != nil {
		return err
	}
	switch it.HolderID {
	case c.ParticipantID:
	case "":
		return protocol.Errorf(protocol.KindNotInHand, "item %d is not in your hand", r.ItemID)
	default:
		return protocol.Errorf(protocol.KindNotYourItem, "item %d is in another hand", r.ItemID)
	}

	d, err := c.table().RemoveFromHand(c.ParticipantID, r.ItemID, r.X, r.Y, r.FaceUp)
	if err != nil {
		return err
	}
	c.handChanged(d, nil)
	return nil
}

// handReorder is private to the caller; the others see no change
func handReorder(c *Context, req protocol.Request) error {
	r := req.(*protocol.HandReorder)
	t := c.table()
	if err := t.ReorderHand(c.ParticipantID, r.From, r.To); err != nil {
		return err
	}
	c.Session.Touch()
	c.Session.SendTo(c.ParticipantID, protocol.NewMessage(protocol.TypeHandUpdated, protocol.HandUpdated{
		Items:  t.Hand(c.ParticipantID),
		Change: protocol.Change{By: c.ParticipantID},
	}))
	return nil
}

// handAddStack takes a whole stack into the caller's hand, bottom card first
func handAddStack(c *Context, req protocol.Request) error {
	r := req.(*protocol.HandAddStack)
	s, err := c.stack(r.StackID)
	if err != nil {
		return err
	}
	if err := c.stackFree(r.StackID); err != nil {
		return err
	}
	for _, id := range s.Items {
		it, err := c.item(id)
		if err != nil {
			return err
		}
		if err := c.itemFree(it); err != nil {
			return err
		}
	}

	moved, d, err := c.table().AddStackToHand(c.ParticipantID, r.StackID)
	if err != nil {
		return err
	}
	c.dropItemLease(moved...)
	if c.Session.Leases().Stacks.Holder(r.StackID) != "" {
		c.Session.Leases().Stacks.Drop(r.StackID)
		c.Session.Broadcast(protocol.NewMessage(protocol.TypeStackUnlocked, protocol.LockChange{ID: r.StackID}))
	}
	c.handChanged(d, moved)
	return nil
}
