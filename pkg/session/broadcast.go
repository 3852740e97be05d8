package session

import (
	"github.com/cuemby/felt/pkg/lease"
	"github.com/cuemby/felt/pkg/protocol"
)

func (s *Session) send(connID string, msg protocol.Message) {
	if s.sender == nil || connID == "" {
		return
	}
	s.sender.Send(connID, msg)
}

// SendTo delivers msg to one participant if connected. Actor only.
func (s *Session) SendTo(participantID string, msg protocol.Message) {
	if p := s.participant(participantID); p != nil && p.Connected {
		s.send(p.ConnID, msg)
	}
}

// Broadcast delivers msg to every connected participant. Actor only.
func (s *Session) Broadcast(msg protocol.Message) {
	for _, p := range s.roster {
		if p.Connected {
			s.send(p.ConnID, msg)
		}
	}
}

// BroadcastOthers delivers msg to everyone connected except one participant.
// Actor only.
func (s *Session) BroadcastOthers(except string, msg protocol.Message) {
	for _, p := range s.roster {
		if p.Connected && p.ID != except {
			s.send(p.ConnID, msg)
		}
	}
}

// BroadcastEach builds a separate message for every connected participant.
// Actor only.
func (s *Session) BroadcastEach(build func(viewer string) protocol.Message) {
	for _, p := range s.roster {
		if p.Connected {
			s.send(p.ConnID, build(p.ID))
		}
	}
}

// BroadcastEachExcept is BroadcastEach without one participant. Actor only.
func (s *Session) BroadcastEachExcept(except string, build func(viewer string) protocol.Message) {
	for _, p := range s.roster {
		if p.Connected && p.ID != except {
			s.send(p.ConnID, build(p.ID))
		}
	}
}

// broadcastFreed announces released leases
func (s *Session) broadcastFreed(freed lease.Freed) {
	for _, id := range freed.Items {
		s.Broadcast(protocol.NewMessage(protocol.TypeItemUnlocked, protocol.LockChange{ID: id}))
	}
	for _, id := range freed.Stacks {
		s.Broadcast(protocol.NewMessage(protocol.TypeStackUnlocked, protocol.LockChange{ID: id}))
	}
}
