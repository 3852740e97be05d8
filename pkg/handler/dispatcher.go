package handler

import (
	"context"
	"errors"

	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/session"
	"github.com/rs/zerolog"
)

// Func applies one decoded intent inside its session loop
type Func func(c *Context, req protocol.Request) error

// Dispatcher decodes client frames and routes them to the registry or to the
// session the connection is bound to.
type Dispatcher struct {
	registry *session.Registry
	sender   session.Sender
	handlers map[protocol.Intent]Func
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher with every table intent registered
func NewDispatcher(registry *session.Registry, sender session.Sender) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		sender:   sender,
		handlers: make(map[protocol.Intent]Func),
		logger:   log.WithComponent("handler"),
	}

	d.register(protocol.IntentItemMove, itemMove)
	d.register(protocol.IntentItemLock, itemLock)
	d.register(protocol.IntentItemUnlock, itemUnlock)
	d.register(protocol.IntentItemFlip, itemFlip)

	d.register(protocol.IntentStackCreate, stackCreate)
	d.register(protocol.IntentStackMove, stackMove)
	d.register(protocol.IntentStackLock, stackLock)
	d.register(protocol.IntentStackUnlock, stackUnlock)
	d.register(protocol.IntentStackAddItem, stackAddItem)
	d.register(protocol.IntentStackRemoveItem, stackRemoveItem)
	d.register(protocol.IntentStackMerge, stackMerge)
	d.register(protocol.IntentStackShuffle, stackShuffle)
	d.register(protocol.IntentStackFlip, stackFlip)
	d.register(protocol.IntentStackSetFaces, stackSetFaces)
	d.register(protocol.IntentStackReorder, stackReorder)

	d.register(protocol.IntentZoneCreate, zoneCreate)
	d.register(protocol.IntentZoneUpdate, zoneUpdate)
	d.register(protocol.IntentZoneDelete, zoneDelete)
	d.register(protocol.IntentZoneAddItem, zoneAddItem)

	d.register(protocol.IntentHandAdd, handAdd)
	d.register(protocol.IntentHandRemove, handRemove)
	d.register(protocol.IntentHandReorder, handReorder)
	d.register(protocol.IntentHandAddStack, handAddStack)

	d.register(protocol.IntentPointer, pointer)

	d.register(protocol.IntentSessionReset, hostOnly(sessionReset))
	d.register(protocol.IntentSessionSettings, hostOnly(sessionSettings))
	d.register(protocol.IntentSessionVisibility, hostOnly(sessionVisibility))
	d.register(protocol.IntentSessionName, hostOnly(sessionName))

	return d
}

func (d *Dispatcher) register(intent protocol.Intent, fn Func) {
	d.handlers[intent] = fn
}

// Handles reports whether intent is routed to a session handler
func (d *Dispatcher) Handles(intent protocol.Intent) bool {
	_, ok := d.handlers[intent]
	return ok
}

// Handle processes one frame received on connID. Outcomes are delivered
// through the sender; the returned error is only for the caller's logging.
func (d *Dispatcher) Handle(ctx context.Context, connID string, data []byte) error {
	env, req, err := protocol.Decode(data)
	if err != nil {
		d.reject(connID, protocol.Intent(env.Type), env.Ref, err)
		return err
	}

	intent := req.Intent()
	timer := metrics.NewTimer()
	err = d.route(ctx, connID, intent, env.Ref, req)
	timer.ObserveDurationVec(metrics.OperationDuration, string(intent))

	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.OperationsTotal.WithLabelValues(string(intent), result).Inc()
	return err
}

func (d *Dispatcher) route(ctx context.Context, connID string, intent protocol.Intent, ref string, req protocol.Request) error {
	switch r := req.(type) {
	case *protocol.Create:
		_, err := d.registry.Create(ctx, connID, r)
		return d.direct(connID, intent, ref, err)
	case *protocol.Join:
		_, err := d.registry.Join(ctx, connID, r)
		return d.direct(connID, intent, ref, err)
	case *protocol.Leave:
		return d.direct(connID, intent, ref, d.registry.Leave(ctx, connID))
	case *protocol.List:
		d.sender.Send(connID, protocol.NewMessage(protocol.TypeList, protocol.SessionList{
			Sessions: d.registry.List(),
		}))
		return nil
	}

	fn, ok := d.handlers[intent]
	if !ok {
		err := protocol.Errorf(protocol.KindInvalid, "unknown intent %q", intent)
		d.reject(connID, intent, ref, err)
		return err
	}

	sess, pid, err := d.registry.Lookup(connID)
	if err != nil {
		return d.direct(connID, intent, ref, err)
	}

	c := &Context{Session: sess, ParticipantID: pid, ConnID: connID}
	err = sess.Submit(ctx, connID, intent, ref, func() error {
		err := fn(c, req)
		mapped := tableError(err)
		if perr, ok := mapped.(*protocol.Error); ok && perr.Kind == protocol.KindInternal {
			sess.Logger().Error().Err(err).Str("intent", string(intent)).Msg("Intent failed")
		}
		return mapped
	})
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			metrics.RejectionsTotal.WithLabelValues(string(perr.Kind)).Inc()
			return err
		}
		// The loop never ran the intent, so nobody has told the client yet
		return d.direct(connID, intent, ref, err)
	}
	return nil
}

// direct sends a registry failure straight to the connection. Registry
// calls that succeed have already replied from inside the session loop.
func (d *Dispatcher) direct(connID string, intent protocol.Intent, ref string, err error) error {
	if err == nil {
		return nil
	}
	d.reject(connID, intent, ref, registryError(err))
	return err
}

func (d *Dispatcher) reject(connID string, intent protocol.Intent, ref string, err error) {
	msg := protocol.Rejection(intent, ref, err)
	if perr, ok := msg.Payload.(*protocol.Error); ok {
		metrics.RejectionsTotal.WithLabelValues(string(perr.Kind)).Inc()
		if perr.Kind == protocol.KindInternal {
			d.logger.Error().Err(err).Str("conn", connID).Str("intent", string(intent)).Msg("Intent failed")
		}
	}
	d.sender.Send(connID, msg)
}

// registryError maps registry sentinel errors to protocol rejections
func registryError(err error) error {
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		return protocol.Errorf(protocol.KindNotFound, "session not found")
	case errors.Is(err, session.ErrNotInSession):
		return protocol.Errorf(protocol.KindInvalid, "not in a session")
	case errors.Is(err, session.ErrSessionFull):
		return protocol.Errorf(protocol.KindFull, "session is full")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.Errorf(protocol.KindInternal, "request cancelled")
	}
	return err
}
