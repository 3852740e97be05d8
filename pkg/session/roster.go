package session

import (
	"time"

	"github.com/cuemby/felt/pkg/events"
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/types"
	"github.com/google/uuid"
)

// Palette is the ordered set of participant colors
var Palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#bfef45",
}

func (s *Session) participant(id string) *types.Participant {
	for _, p := range s.roster {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Participant returns a copy of a roster entry. Actor only.
func (s *Session) Participant(id string) (types.Participant, bool) {
	if p := s.participant(id); p != nil {
		return *p, true
	}
	return types.Participant{}, false
}

// IsHost reports whether id is the session host. Actor only.
func (s *Session) IsHost(id string) bool {
	h := s.host()
	return h != nil && h.ID == id
}

func (s *Session) host() *types.Participant {
	for _, p := range s.roster {
		if p.Host {
			return p
		}
	}
	return nil
}

// Roster returns the public roster in join order. Actor only.
func (s *Session) Roster() []types.RosterEntry {
	out := make([]types.RosterEntry, 0, len(s.roster))
	for _, p := range s.roster {
		out = append(out, p.Public())
	}
	return out
}

func (s *Session) nextColor() string {
	used := make(map[string]bool, len(s.roster))
	for _, p := range s.roster {
		used[p.Color] = true
	}
	for _, c := range Palette {
		if !used[c] {
			return c
		}
	}
	return Palette[len(s.roster)%len(Palette)]
}

// admit adds a new participant bound to connID
func (s *Session) admit(name, connID, token string) (*types.Participant, error) {
	if s.retiring {
		return nil, ErrSessionClosed
	}
	if len(s.roster) >= s.maxSeats {
		return nil, protocol.Errorf(protocol.KindFull, "session %s is full", s.code)
	}
	p := &types.Participant{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     s.nextColor(),
		Connected: true,
		Host:      s.host() == nil,
		JoinedAt:  s.now(),
		Token:     token,
		ConnID:    connID,
	}
	s.roster = append(s.roster, p)
	s.idleSince = s.now()
	s.Touch()

	s.BroadcastOthers(p.ID, protocol.NewMessage(protocol.TypeParticipantJoined, protocol.ParticipantEvent{Participant: p.Public()}))
	s.broker.Publish(&events.Event{
		Type:     events.EventParticipantJoined,
		Session:  s.code,
		Message:  p.Name,
		Metadata: map[string]string{"participant": p.ID},
	})
	s.logger.Info().Str("participant", p.ID).Str("name", p.Name).Msg("Participant joined")
	return p, nil
}

// rebind attaches an existing participant to a new connection. It returns
// the connection the participant was previously using, if any.
func (s *Session) rebind(p *types.Participant, connID string) (string, error) {
	if s.retiring {
		return "", ErrSessionClosed
	}
	prev := ""
	if p.Connected && p.ConnID != connID {
		prev = p.ConnID
	}
	p.ConnID = connID
	p.Connected = true
	s.Touch()

	s.BroadcastOthers(p.ID, protocol.NewMessage(protocol.TypeParticipantReconnected, protocol.ParticipantEvent{Participant: p.Public()}))
	s.broker.Publish(&events.Event{
		Type:     events.EventParticipantReconnected,
		Session:  s.code,
		Message:  p.Name,
		Metadata: map[string]string{"participant": p.ID},
	})
	s.logger.Info().Str("participant", p.ID).Msg("Participant reconnected")
	return prev, nil
}

// disconnect marks a participant offline, keeping its roster entry and hand
// but releasing its leases. Stale connection ids are ignored.
func (s *Session) disconnect(participantID, connID string) bool {
	p := s.participant(participantID)
	if p == nil || !p.Connected || p.ConnID != connID {
		return false
	}
	p.Connected = false
	p.ConnID = ""
	delete(s.pointers, p.ID)
	s.broadcastFreed(s.leases.ReleaseAllFor(p.ID))
	if s.connected() == 0 {
		s.idleSince = s.now()
	}
	s.Touch()

	s.Broadcast(protocol.NewMessage(protocol.TypeParticipantDisconnected, protocol.ParticipantEvent{Participant: p.Public()}))
	s.broker.Publish(&events.Event{
		Type:     events.EventParticipantDisconnected,
		Session:  s.code,
		Message:  p.Name,
		Metadata: map[string]string{"participant": p.ID},
	})
	s.logger.Info().Str("participant", p.ID).Msg("Participant disconnected")
	return true
}

// remove takes a participant off the roster for good: leases are released,
// the hand goes back to the table and host passes to the next participant.
func (s *Session) remove(participantID string) *types.Participant {
	idx := -1
	for i, p := range s.roster {
		if p.ID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	p := s.roster[idx]
	s.roster = append(s.roster[:idx], s.roster[idx+1:]...)
	delete(s.pointers, p.ID)

	s.broadcastFreed(s.leases.ReleaseAllFor(p.ID))
	if returned := s.table.ReturnHand(p.ID); len(returned.Items) > 0 {
		s.Broadcast(protocol.NewMessage(protocol.TypeItemsReturned, protocol.ItemsReturned{
			PlayerID: p.ID,
			Change:   protocol.Change{Delta: returned},
		}))
	}
	s.Broadcast(protocol.NewMessage(protocol.TypeParticipantLeft, protocol.ParticipantLeft{ParticipantID: p.ID}))

	if p.Host && len(s.roster) > 0 {
		next := s.roster[0]
		next.Host = true
		s.Broadcast(protocol.NewMessage(protocol.TypeHostChanged, protocol.HostChanged{ParticipantID: next.ID}))
	}
	if s.connected() == 0 {
		s.idleSince = s.now()
	}
	s.Touch()

	s.broker.Publish(&events.Event{
		Type:     events.EventParticipantLeft,
		Session:  s.code,
		Message:  p.Name,
		Metadata: map[string]string{"participant": p.ID},
	})
	s.logger.Info().Str("participant", p.ID).Msg("Participant left")
	return p
}

func (s *Session) connected() int {
	n := 0
	for _, p := range s.roster {
		if p.Connected {
			n++
		}
	}
	return n
}

// Empty reports whether nobody is on the roster. Actor only.
func (s *Session) Empty() bool {
	return len(s.roster) == 0
}

// retireIf marks the session as retiring when cond holds. Once retiring it
// admits nobody, so the decision cannot be overtaken by a queued join.
// Actor only.
func (s *Session) retireIf(cond bool) bool {
	if cond {
		s.retiring = true
	}
	return s.retiring
}

// idleFor reports whether nobody has been connected for at least d. Actor only.
func (s *Session) idleFor(d time.Duration) bool {
	return s.connected() == 0 && s.now().Sub(s.idleSince) >= d
}
