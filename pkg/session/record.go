package session

import (
	"context"
	"fmt"

	"github.com/cuemby/felt/pkg/events"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/types"
)

// record captures the session for persistence. Actor only.
func (s *Session) record() types.SessionRecord {
	roster := make([]types.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		cp := *p
		cp.Connected = false
		cp.ConnID = ""
		roster = append(roster, cp)
	}
	return types.SessionRecord{
		Code:      s.code,
		Name:      s.name,
		Public:    s.public,
		CreatedAt: s.createdAt,
		Settings:  s.settings,
		Roster:    roster,
		Table:     s.table.Export(),
		Initial:   s.initial,
		SavedAt:   s.now(),
	}
}

// restoreRoster installs a persisted roster with everyone disconnected.
// Actor only.
func (s *Session) restoreRoster(roster []types.Participant) {
	s.roster = s.roster[:0]
	hasHost := false
	for i := range roster {
		p := roster[i]
		p.Connected = false
		p.ConnID = ""
		if p.Host {
			if hasHost {
				p.Host = false
			}
			hasHost = true
		}
		s.roster = append(s.roster, &p)
	}
	if !hasHost && len(s.roster) > 0 {
		s.roster[0].Host = true
	}
	s.idleSince = s.now()
}

// Checkpoint saves every session changed since its last checkpoint. It
// returns how many sessions were written.
func (r *Registry) Checkpoint(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Dirty() {
			sessions = append(sessions, s)
		}
	}
	r.mu.RUnlock()

	saved := 0
	var firstErr error
	for _, s := range sessions {
		var rec types.SessionRecord
		retiring := false
		err := s.Do(ctx, func() error {
			if retiring = s.retiring; retiring {
				return nil
			}
			rec = s.record()
			s.dirty.Store(false)
			return nil
		})
		if err != nil || retiring {
			continue
		}
		written, err := r.save(s, rec)
		if err != nil {
			s.dirty.Store(true)
			metrics.CheckpointsTotal.WithLabelValues("error").Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to checkpoint session %s: %w", rec.Code, err)
			}
			continue
		}
		if !written {
			continue
		}
		metrics.CheckpointsTotal.WithLabelValues("ok").Inc()
		saved++
	}
	return saved, firstErr
}

// save writes rec unless the session has been retired since it was taken.
// Retire deletes under the same lock, so a retired session is never written
// back.
func (r *Registry) save(s *Session, rec types.SessionRecord) (bool, error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if live, ok := r.Get(s.code); !ok || live != s {
		return false, nil
	}
	return true, r.store.SaveSession(rec)
}

// Restore loads every persisted session. Participants come back
// disconnected and can resume with their reconnect tokens.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	records, err := r.store.ListSessions()
	if err != nil {
		return 0, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	restored := 0
	for i := range records {
		rec := records[i]
		if _, live := r.Get(rec.Code); live {
			continue
		}
		opts := r.options(rec.Code, rec.Name, rec.Public)
		opts.CreatedAt = rec.CreatedAt
		opts.Settings = &rec.Settings
		opts.Initial = rec.Initial
		opts.Current = &rec.Table
		sess := New(opts)

		if err := sess.Do(ctx, func() error {
			sess.restoreRoster(rec.Roster)
			return nil
		}); err != nil {
			sess.Stop()
			return restored, err
		}
		for _, p := range rec.Roster {
			if p.Token != "" {
				r.tokens.Bind(p.Token, rec.Code, p.ID)
			}
		}

		r.mu.Lock()
		r.sessions[rec.Code] = sess
		r.mu.Unlock()

		r.broker.Publish(&events.Event{Type: events.EventSessionRestored, Session: rec.Code})
		r.logger.Info().Str("session", rec.Code).Int("participants", len(rec.Roster)).Msg("Session restored")
		restored++
	}
	return restored, nil
}
