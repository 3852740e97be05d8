package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/felt/pkg/events"
	"github.com/cuemby/felt/pkg/lease"
	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/table"
	"github.com/cuemby/felt/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrSessionNotFound is returned when no live session has the given code
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionFull is returned when the roster is at capacity
	ErrSessionFull = errors.New("session full")

	// ErrNotInSession is returned for a connection that has not joined a session
	ErrNotInSession = errors.New("not in a session")

	// ErrSessionClosed is returned by Do once the session loop has stopped
	ErrSessionClosed = errors.New("session closed")
)

// DefaultMaxParticipants is the roster cap
const DefaultMaxParticipants = 8

// Sender delivers messages to a connection. Implementations must not block.
type Sender interface {
	Send(connID string, msg protocol.Message)
}

// Options configures a new session
type Options struct {
	Code            string
	Name            string
	Public          bool
	CreatedAt       time.Time
	Settings        *types.Settings
	MaxParticipants int
	LeaseTTL        time.Duration
	LeaseSweep      time.Duration
	QueueSize       int
	Initial         types.TableState
	Current         *types.TableState
	Sender          Sender
	Broker          *events.Broker
	Now             func() time.Time
}

// Summary is a copy of session metadata readable from any goroutine
type Summary struct {
	Info         types.SessionInfo
	Public       bool
	Connected    int
	Disconnected int
	ItemLeases   int
	StackLeases  int
	IdleSince    time.Time
}

type op struct {
	fn   func() error
	done chan error
}

// Session is one table and everything attached to it. All state is owned by
// a single goroutine; callers reach it through Do. Methods documented as
// "actor only" must be called from inside a Do callback.
type Session struct {
	code      string
	name      string
	public    bool
	createdAt time.Time
	settings  types.Settings
	maxSeats  int

	table    *table.Table
	initial  types.TableState
	leases   *lease.Manager
	roster   []*types.Participant
	pointers map[string]types.Pointer

	idleSince time.Time
	retiring  bool

	sender Sender
	broker *events.Broker
	logger zerolog.Logger
	now    func() time.Time

	summary atomic.Pointer[Summary]
	dirty   atomic.Bool

	ops      chan op
	sweep    time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New builds a session and starts its loop
func New(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = DefaultMaxParticipants
	}
	if opts.LeaseSweep <= 0 {
		opts.LeaseSweep = lease.DefaultSweepInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = opts.Now()
	}
	settings := types.DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	current := opts.Initial
	if opts.Current != nil {
		current = *opts.Current
	}

	s := &Session{
		code:      opts.Code,
		name:      opts.Name,
		public:    opts.Public,
		createdAt: opts.CreatedAt,
		settings:  settings,
		maxSeats:  opts.MaxParticipants,
		table:     table.FromState(current),
		initial:   opts.Initial,
		leases:    lease.NewManager(opts.LeaseTTL, opts.Now),
		pointers:  make(map[string]types.Pointer),
		idleSince: opts.Now(),
		sender:    opts.Sender,
		broker:    opts.Broker,
		logger:    log.WithSession(opts.Code),
		now:       opts.Now,
		ops:       make(chan op, opts.QueueSize),
		sweep:     opts.LeaseSweep,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if s.name == "" {
		s.name = "Table " + s.code
	}
	s.refresh()
	go s.run()
	return s
}

// Code returns the session code
func (s *Session) Code() string { return s.code }

// Summary returns the latest metadata copy
func (s *Session) Summary() Summary { return *s.summary.Load() }

// Dirty reports whether the session changed since the last checkpoint
func (s *Session) Dirty() bool { return s.dirty.Load() }

// Done is closed when the session loop has exited
func (s *Session) Done() <-chan struct{} { return s.doneCh }

func (s *Session) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case o := <-s.ops:
			o.done <- s.exec(o.fn)
		case <-ticker.C:
			_ = s.exec(func() error {
				s.sweepLeases()
				return nil
			})
		case <-s.stopCh:
			return
		}
	}
}

// Do runs fn on the session goroutine and waits for it. Operations run one
// at a time in arrival order. A panic in fn is recovered and reported as an
// INTERNAL protocol error.
func (s *Session) Do(ctx context.Context, fn func() error) error {
	o := op{fn: fn, done: make(chan error, 1)}
	select {
	case s.ops <- o:
	case <-s.doneCh:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.done:
		return err
	case <-s.doneCh:
		select {
		case err := <-o.done:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// Submit runs a participant intent. A failure is sent to connID as a
// rejection from inside the loop, so it is ordered with every broadcast.
func (s *Session) Submit(ctx context.Context, connID string, intent protocol.Intent, ref string, fn func() error) error {
	return s.Do(ctx, func() error {
		err := s.guard(fn)
		if err != nil {
			s.send(connID, protocol.Rejection(intent, ref, err))
		}
		return err
	})
}

// Stop ends the session loop. Queued operations are dropped.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Session) exec(fn func() error) error {
	err := s.guard(fn)
	s.afterOp()
	return err
}

func (s *Session) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.Inc()
			s.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Operation panicked")
			err = protocol.Errorf(protocol.KindInternal, "internal error")
		}
	}()
	return fn()
}

func (s *Session) afterOp() {
	if s.table.NeedsRenormalize() {
		s.table.Renormalize()
		s.logger.Info().Msg("Depth counter renormalized")
		s.BroadcastEach(func(viewer string) protocol.Message {
			return protocol.NewMessage(protocol.TypeState, protocol.State{
				Reason: "renormalized",
				State:  s.Snapshot(viewer),
			})
		})
	}
	s.refresh()
}

// refresh publishes a new summary for readers outside the loop
func (s *Session) refresh() {
	sum := &Summary{
		Public:      s.public,
		ItemLeases:  len(s.leases.Items.Holders()),
		StackLeases: len(s.leases.Stacks.Holders()),
		IdleSince:   s.idleSince,
	}
	for _, p := range s.roster {
		if p.Connected {
			sum.Connected++
		} else {
			sum.Disconnected++
		}
	}
	sum.Info = types.SessionInfo{
		Code:         s.code,
		Name:         s.name,
		Players:      len(s.roster),
		MaxPlayers:   s.maxSeats,
		CreatedAt:    s.createdAt,
		HasOpenSeats: len(s.roster) < s.maxSeats,
	}
	if sum.Connected > 0 {
		sum.IdleSince = time.Time{}
	}
	s.summary.Store(sum)
}

// Touch marks the session as changed since the last checkpoint. Actor only.
func (s *Session) Touch() {
	s.dirty.Store(true)
}

// Table returns the authoritative table. Actor only.
func (s *Session) Table() *table.Table { return s.table }

// Leases returns the lease manager. Actor only.
func (s *Session) Leases() *lease.Manager { return s.leases }

// Logger returns the session logger
func (s *Session) Logger() *zerolog.Logger { return &s.logger }

// Locks returns the current lease holders for view annotation. Actor only.
func (s *Session) Locks() table.Locks {
	return table.Locks{Items: s.leases.Items.Holders(), Stacks: s.leases.Stacks.Holders()}
}

// Snapshot returns the full state as seen by viewer. Actor only.
func (s *Session) Snapshot(viewer string) types.Snapshot {
	return s.table.Snapshot(viewer, s.Locks())
}

// Meta returns the session metadata sent on create and join. Actor only.
func (s *Session) Meta() protocol.SessionMeta {
	meta := protocol.SessionMeta{
		Code:       s.code,
		Name:       s.name,
		Public:     s.public,
		Settings:   s.settings,
		MaxPlayers: s.maxSeats,
	}
	if h := s.host(); h != nil {
		meta.HostID = h.ID
	}
	return meta
}

// Settings returns the presentation settings. Actor only.
func (s *Session) Settings() types.Settings { return s.settings }

// SetSettings replaces the presentation settings. Actor only.
func (s *Session) SetSettings(v types.Settings) {
	s.settings = v
	s.Touch()
}

// SetPublic changes whether the session is listed. Actor only.
func (s *Session) SetPublic(public bool) {
	s.public = public
	s.Touch()
}

// SetName renames the session. Actor only.
func (s *Session) SetName(name string) {
	s.name = name
	s.Touch()
}

// Reset restores the initial table, dropping every lease and emptying every
// hand. Actor only.
func (s *Session) Reset() {
	s.table = table.FromState(s.initial)
	s.leases.Reset()
	s.Touch()
	s.broker.Publish(&events.Event{Type: events.EventSessionReset, Session: s.code})
}

// SetPointer records the last pointer of a participant. Actor only.
func (s *Session) SetPointer(p types.Pointer) {
	s.pointers[p.ParticipantID] = p
}

// Pointers returns the active pointers of connected participants. Actor only.
func (s *Session) Pointers() []types.Pointer {
	out := make([]types.Pointer, 0, len(s.pointers))
	for _, p := range s.roster {
		if ptr, ok := s.pointers[p.ID]; ok && p.Connected {
			out = append(out, ptr)
		}
	}
	return out
}

// sweepLeases clears expired leases and tells everyone
func (s *Session) sweepLeases() {
	freed := s.leases.Sweep()
	if freed.Empty() {
		return
	}
	metrics.LeasesExpired.Add(float64(len(freed.Items) + len(freed.Stacks)))
	s.logger.Debug().
		Ints("items", freed.Items).
		Ints("stacks", freed.Stacks).
		Msg("Expired leases cleared")
	s.broadcastFreed(freed)
}
