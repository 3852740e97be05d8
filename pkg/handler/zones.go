package handler

import (
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/table"
)

func zoneCreate(c *Context, req protocol.Request) error {
	r := req.(*protocol.ZoneCreate)
	if err := c.knownParticipant(r.OwnerID); err != nil {
		return err
	}
	id, d, err := c.table().CreateZone(table.ZoneSpec{
		Bounds:     r.Bounds,
		Label:      r.Label,
		FaceUp:     r.FaceUp,
		Visibility: r.Visibility,
		OwnerID:    r.OwnerID,
		Layout:     r.Layout,
		Params:     r.Params,
	})
	if err != nil {
		return err
	}
	c.commit(protocol.TypeZoneCreated, d, func(ch protocol.Change) any {
		return protocol.ZoneCreated{ZoneID: id, Change: ch}
	})
	return nil
}

// zoneUpdate applies a partial update. A locked zone only accepts toggling
// the lock itself.
func zoneUpdate(c *Context, req protocol.Request) error {
	r := req.(*protocol.ZoneUpdate)
	z, err := c.zone(r.ID)
	if err != nil {
		return err
	}
	patch := table.ZonePatch{
		Bounds:     r.Bounds,
		Label:      r.Label,
		FaceUp:     r.FaceUp,
		Locked:     r.Locked,
		Visibility: r.Visibility,
		OwnerID:    r.OwnerID,
		Layout:     r.Layout,
		Params:     r.Params,
	}
	if z.Locked && !patch.OnlyLock() {
		return protocol.Errorf(protocol.KindZoneLocked, "zone %d is locked", r.ID).WithCurrent(z)
	}
	if r.OwnerID != nil {
		if err := c.knownParticipant(*r.OwnerID); err != nil {
			return err
		}
	}
	if patch.Geometric() && z.StackID != 0 {
		if err := c.stackFree(z.StackID); err != nil {
			return err
		}
	}

	d, err := c.table().UpdateZone(r.ID, patch)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeZoneUpdated, d, nil)
	return nil
}

// zoneDelete removes an unlocked zone; its cards stay where they lie
func zoneDelete(c *Context, req protocol.Request) error {
	r := req.(*protocol.ZoneDelete)
	z, err := c.zone(r.ID)
	if err != nil {
		return err
	}
	if z.Locked {
		return protocol.Errorf(protocol.KindZoneLocked, "zone %d is locked", r.ID).WithCurrent(z)
	}
	if z.StackID != 0 {
		if err := c.stackFree(z.StackID); err != nil {
			return err
		}
	}
	d, err := c.table().DeleteZone(r.ID)
	if err != nil {
		return err
	}
	c.commit(protocol.TypeZoneDeleted, d, nil)
	return nil
}

// zoneAddItem drops an item into a zone, onto the zone's stack
func zoneAddItem(c *Context, req protocol.Request) error {
	r := req.(*protocol.ZoneAddItem)
	z, err := c.zone(r.ID)
	if err != nil {
		return err
	}
	it, err := c.item(r.ItemID)
	if err != nil {
		return err
	}
	if err := c.itemFree(it); err != nil {
		return err
	}
	if z.StackID != 0 && z.StackID != it.StackID {
		if err := c.stackFree(z.StackID); err != nil {
			return err
		}
	}
	if err := c.notOthers(it); err != nil {
		return err
	}

	d, err := c.table().AddToZone(r.ID, r.ItemID)
	if err != nil {
		return err
	}
	c.dropItemLease(r.ItemID)
	c.commit(protocol.TypeZoneUpdated, d, nil)
	if it.HolderID != "" {
		c.handChanged(table.Delta{}, nil)
	}
	return nil
}

// knownParticipant accepts an empty id or a roster member
func (c *Context) knownParticipant(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := c.Session.Participant(id); !ok {
		return protocol.Errorf(protocol.KindNotFound, "participant %s not found", id)
	}
	return nil
}
