package handler

import (
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/types"
)

// hostOnly rejects the intent unless the caller hosts the session
func hostOnly(fn Func) Func {
	return func(c *Context, req protocol.Request) error {
		if !c.Session.IsHost(c.ParticipantID) {
			return protocol.Errorf(protocol.KindInvalid, "only the host can do that")
		}
		return fn(c, req)
	}
}

// pointer relays cursor presence to everyone else. It is not persisted and
// does not mark the session dirty.
func pointer(c *Context, req protocol.Request) error {
	r := req.(*protocol.PointerUpdate)
	p := types.Pointer{ParticipantID: c.ParticipantID, X: r.X, Y: r.Y, State: r.State}
	c.Session.SetPointer(p)
	if !c.Session.Settings().ShowPointers {
		return nil
	}
	c.Session.BroadcastOthers(c.ParticipantID, protocol.NewMessage(protocol.TypePointer, p))
	return nil
}

// sessionReset restores the starting table. Every viewer gets a fresh,
// individually projected snapshot.
func sessionReset(c *Context, _ protocol.Request) error {
	s := c.Session
	s.Reset()
	s.Logger().Info().Str("by", c.ParticipantID).Msg("Table reset")
	s.BroadcastEach(func(viewer string) protocol.Message {
		return protocol.NewMessage(protocol.TypeState, protocol.State{
			Reason: "reset",
			State:  s.Snapshot(viewer),
		})
	})
	return nil
}

func sessionSettings(c *Context, req protocol.Request) error {
	r := req.(*protocol.SessionSettings)
	settings := r.Apply(c.Session.Settings())
	c.Session.SetSettings(settings)
	c.Session.Broadcast(protocol.NewMessage(protocol.TypeSettingsUpdated, protocol.SettingsUpdated{
		Settings: settings,
	}))
	return nil
}

func sessionVisibility(c *Context, req protocol.Request) error {
	r := req.(*protocol.SessionVisibility)
	c.Session.SetPublic(r.Public)
	c.Session.Broadcast(protocol.NewMessage(protocol.TypeVisibilityUpdated, protocol.VisibilityUpdated{
		Public: r.Public,
	}))
	return nil
}

func sessionName(c *Context, req protocol.Request) error {
	r := req.(*protocol.SessionName)
	c.Session.SetName(r.Name)
	c.Session.Broadcast(protocol.NewMessage(protocol.TypeNameUpdated, protocol.NameUpdated{
		Name: r.Name,
	}))
	return nil
}
