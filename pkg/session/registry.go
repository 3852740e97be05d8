package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/felt/pkg/events"
	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Retirement reasons
const (
	ReasonEmpty    = "empty"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
	ReasonFailed   = "failed"
)

// DefaultIdleRetention is how long a session with nobody connected survives
const DefaultIdleRetention = 24 * time.Hour

// Store persists session checkpoints
type Store interface {
	SaveSession(rec types.SessionRecord) error
	DeleteSession(code string) error
	ListSessions() ([]types.SessionRecord, error)
}

// Config holds registry settings
type Config struct {
	MaxParticipants int
	IdleRetention   time.Duration
	LeaseTTL        time.Duration
	LeaseSweep      time.Duration
	CodeLength      int
	QueueSize       int
	RetiredCodes    int
	Initial         types.TableState
	Now             func() time.Time
}

type binding struct {
	code          string
	participantID string
}

// Registry owns every live session and the indexes that route connections
// and reconnect tokens to them.
type Registry struct {
	cfg    Config
	sender Sender
	broker *events.Broker
	store  Store
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	conns    map[string]binding

	// storeMu orders checkpoint writes against checkpoint deletes
	storeMu sync.Mutex

	tokens  *TokenIndex
	retired *lru.Cache[string, time.Time]
}

// NewRegistry creates a registry. broker and store may be nil.
func NewRegistry(cfg Config, sender Sender, broker *events.Broker, store Store) (*Registry, error) {
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = DefaultMaxParticipants
	}
	if cfg.IdleRetention <= 0 {
		cfg.IdleRetention = DefaultIdleRetention
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.RetiredCodes <= 0 {
		cfg.RetiredCodes = 4096
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	retired, err := lru.New[string, time.Time](cfg.RetiredCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to create retired code cache: %w", err)
	}
	return &Registry{
		cfg:      cfg,
		sender:   sender,
		broker:   broker,
		store:    store,
		logger:   log.WithComponent("registry"),
		sessions: make(map[string]*Session),
		conns:    make(map[string]binding),
		tokens:   NewTokenIndex(),
		retired:  retired,
	}, nil
}

func (r *Registry) options(code, name string, public bool) Options {
	return Options{
		Code:            code,
		Name:            name,
		Public:          public,
		MaxParticipants: r.cfg.MaxParticipants,
		LeaseTTL:        r.cfg.LeaseTTL,
		LeaseSweep:      r.cfg.LeaseSweep,
		QueueSize:       r.cfg.QueueSize,
		Initial:         r.cfg.Initial,
		Sender:          r.sender,
		Broker:          r.broker,
		Now:             r.cfg.Now,
	}
}

func (r *Registry) bind(connID, code, participantID string) {
	r.mu.Lock()
	r.conns[connID] = binding{code: code, participantID: participantID}
	r.mu.Unlock()
}

func (r *Registry) unbind(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

func (r *Registry) binding(connID string) (binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	return b, ok
}

// Get returns a live session by code
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Lookup resolves a connection to its session and participant
func (r *Registry) Lookup(connID string) (*Session, string, error) {
	b, ok := r.binding(connID)
	if !ok {
		return nil, "", ErrNotInSession
	}
	s, ok := r.Get(b.code)
	if !ok {
		r.unbind(connID)
		return nil, "", ErrSessionNotFound
	}
	return s, b.participantID, nil
}

// freshToken returns the client's token if it is unused, or a new one
func (r *Registry) freshToken(requested string) string {
	if requested != "" {
		if _, used := r.tokens.Lookup(requested); !used {
			return requested
		}
	}
	return r.tokens.Generate()
}

// Create starts a new session with the caller as its host. The created
// message is sent to connID from inside the session loop.
func (r *Registry) Create(ctx context.Context, connID string, req *protocol.Create) (*Session, error) {
	if _, bound := r.binding(connID); bound {
		return nil, protocol.Errorf(protocol.KindInvalid, "already in a session")
	}

	r.mu.Lock()
	code, err := generateCode(r.cfg.CodeLength, func(c string) bool {
		_, live := r.sessions[c]
		return live || r.retired.Contains(c)
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	sess := New(r.options(code, req.SessionName, req.Public))
	r.sessions[code] = sess
	r.mu.Unlock()

	token := r.freshToken(req.Token)
	err = sess.Do(ctx, func() error {
		p, err := sess.admit(req.DisplayName, connID, token)
		if err != nil {
			return err
		}
		r.tokens.Bind(token, code, p.ID)
		r.bind(connID, code, p.ID)
		sess.send(connID, protocol.NewMessage(protocol.TypeCreated, protocol.Created{
			SessionMeta:   sess.Meta(),
			ParticipantID: p.ID,
			Token:         token,
			Roster:        sess.Roster(),
			State:         sess.Snapshot(p.ID),
		}))
		return nil
	})
	if err != nil {
		r.Retire(code, ReasonFailed)
		return nil, err
	}

	metrics.SessionsCreated.Inc()
	r.broker.Publish(&events.Event{Type: events.EventSessionCreated, Session: code, Message: sess.Summary().Info.Name})
	r.logger.Info().Str("session", code).Bool("public", req.Public).Msg("Session created")
	return sess, nil
}

// Join adds the caller to a session, or resumes its roster entry when the
// request carries a reconnect token issued for that session.
func (r *Registry) Join(ctx context.Context, connID string, req *protocol.Join) (*Session, error) {
	if _, bound := r.binding(connID); bound {
		return nil, protocol.Errorf(protocol.KindInvalid, "already in a session")
	}
	sess, ok := r.Get(req.Code)
	if !ok {
		if r.retired.Contains(req.Code) {
			return nil, protocol.Errorf(protocol.KindNotFound, "session %s has ended", req.Code)
		}
		return nil, protocol.Errorf(protocol.KindNotFound, "session %s not found", req.Code)
	}

	var resume TokenBinding
	if req.Token != "" {
		if b, ok := r.tokens.Lookup(req.Token); ok && b.Code == sess.code {
			resume = b
		}
	}

	err := sess.Do(ctx, func() error {
		var p *types.Participant
		reconnected := false
		if resume.ParticipantID != "" {
			if p = sess.participant(resume.ParticipantID); p != nil {
				prev, err := sess.rebind(p, connID)
				if err != nil {
					return err
				}
				if prev != "" {
					r.unbind(prev)
				}
				reconnected = true
			}
		}
		if p == nil {
			if req.DisplayName == "" {
				return protocol.Errorf(protocol.KindInvalid, "display name is required")
			}
			token := r.freshToken(req.Token)
			var err error
			if p, err = sess.admit(req.DisplayName, connID, token); err != nil {
				return err
			}
			r.tokens.Bind(token, sess.code, p.ID)
		}
		r.bind(connID, sess.code, p.ID)
		sess.send(connID, protocol.NewMessage(protocol.TypeJoined, protocol.Joined{
			SessionMeta:    sess.Meta(),
			ParticipantID:  p.ID,
			Token:          p.Token,
			Reconnected:    reconnected,
			Roster:         sess.Roster(),
			State:          sess.Snapshot(p.ID),
			ActivePointers: sess.Pointers(),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Leave removes the caller from its session for good. The session is
// retired when its roster becomes empty.
func (r *Registry) Leave(ctx context.Context, connID string) error {
	b, ok := r.binding(connID)
	if !ok {
		return protocol.Errorf(protocol.KindNotFound, "not in a session")
	}
	sess, ok := r.Get(b.code)
	if !ok {
		r.unbind(connID)
		return protocol.Errorf(protocol.KindNotFound, "session %s not found", b.code)
	}

	empty := false
	err := sess.Do(ctx, func() error {
		if p := sess.remove(b.participantID); p != nil {
			r.tokens.Revoke(p.Token)
		}
		r.unbind(connID)
		empty = sess.retireIf(sess.Empty())
		return nil
	})
	if err != nil {
		return err
	}
	if empty {
		r.Retire(b.code, ReasonEmpty)
	}
	return nil
}

// Disconnect handles a dropped connection. The participant keeps its roster
// entry, hand and token; only its leases are released.
func (r *Registry) Disconnect(ctx context.Context, connID string) {
	b, ok := r.binding(connID)
	if !ok {
		return
	}
	r.unbind(connID)
	sess, ok := r.Get(b.code)
	if !ok {
		return
	}
	if err := sess.Do(ctx, func() error {
		sess.disconnect(b.participantID, connID)
		return nil
	}); err != nil {
		r.logger.Debug().Err(err).Str("session", b.code).Msg("Disconnect after session closed")
	}
}

// List returns the public sessions, newest first
func (r *Registry) List() []types.SessionInfo {
	r.mu.RLock()
	out := make([]types.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		if sum := s.Summary(); sum.Public {
			out = append(out, sum.Info)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Retire stops a session and forgets it. Its code stays reserved in the
// recently retired cache. Callers retiring a session that still takes joins
// mark it retiring inside its loop first. Retire must not be called from
// inside Do.
func (r *Registry) Retire(code, reason string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[code]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, code)
	for conn, b := range r.conns {
		if b.code == code {
			delete(r.conns, conn)
		}
	}
	r.retired.Add(code, r.cfg.Now())
	r.mu.Unlock()

	r.tokens.RevokeSession(code)
	sess.Stop()
	if r.store != nil && reason != ReasonShutdown {
		r.storeMu.Lock()
		if err := r.store.DeleteSession(code); err != nil {
			r.logger.Error().Err(err).Str("session", code).Msg("Failed to delete session checkpoint")
		}
		r.storeMu.Unlock()
	}

	metrics.SessionsRetired.WithLabelValues(reason).Inc()
	r.broker.Publish(&events.Event{
		Type:     events.EventSessionRetired,
		Session:  code,
		Metadata: map[string]string{"reason": reason},
	})
	r.logger.Info().Str("session", code).Str("reason", reason).Msg("Session retired")
	return true
}

// SweepIdle retires sessions nobody has been connected to for longer than
// the idle retention. It returns the retired codes.
func (r *Registry) SweepIdle() []string {
	now := r.cfg.Now()
	r.mu.RLock()
	var candidates []*Session
	for _, s := range r.sessions {
		sum := s.Summary()
		if sum.Connected == 0 && !sum.IdleSince.IsZero() && now.Sub(sum.IdleSince) >= r.cfg.IdleRetention {
			candidates = append(candidates, s)
		}
	}
	r.mu.RUnlock()

	// The summary may be stale; the loop makes the final call
	var idle []string
	for _, s := range candidates {
		retiring := false
		err := s.Do(context.Background(), func() error {
			retiring = s.retireIf(s.idleFor(r.cfg.IdleRetention))
			return nil
		})
		if err != nil || !retiring {
			continue
		}
		if r.Retire(s.code, ReasonIdle) {
			idle = append(idle, s.code)
		}
	}
	sort.Strings(idle)
	return idle
}

// Shutdown stops every session without deleting checkpoints
func (r *Registry) Shutdown() {
	r.mu.RLock()
	codes := make([]string, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	r.mu.RUnlock()

	for _, code := range codes {
		r.Retire(code, ReasonShutdown)
	}
}

// Stats summarizes the registry for the metrics collector
func (r *Registry) Stats() metrics.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var st metrics.Stats
	for _, s := range r.sessions {
		sum := s.Summary()
		if sum.Public {
			st.PublicSessions++
		} else {
			st.PrivateSessions++
		}
		st.Connected += sum.Connected
		st.Disconnected += sum.Disconnected
		st.ItemLeases += sum.ItemLeases
		st.StackLeases += sum.StackLeases
	}
	return st
}
