/*
Package session owns live game sessions and the registry that routes
connections to them.

# Sessions

A Session is a single table with its roster, leases and settings. All of
its state is mutated by one goroutine, the session loop:

	            ┌──────────── Session loop ────────────┐
	 Do ───────▶│ ops channel ─▶ guard(fn) ─▶ afterOp  │
	 Submit ───▶│                                      │
	            │ lease sweep ticker ─▶ item/stack     │
	            │                       unlocked       │
	 Stop ─────▶│ stopCh ─▶ drain, close doneCh        │
	            └──────────────────────────────────────┘

Do queues a function and waits for it. Submit does the same for a client
intent and, when the function fails, sends the rejection to the submitting
connection from inside the loop, so a rejection can never overtake or
trail a broadcast that changed the same subject.

A panic inside an operation is recovered, logged and counted, and reaches
the client as an INTERNAL rejection; the session keeps running. After every
operation the loop renormalizes item depth when the counter grows past
table.MaxDepth (broadcasting a full state) and publishes an atomic Summary
that readers outside the loop use for listings and metrics.

# Registry

The Registry maps session codes to sessions, connections to
(code, participant) bindings, and reconnect tokens to seats. Its mutex is
never held while waiting on a session loop.

  - Create generates a code avoiding live codes and recently retired ones
    (an LRU cache), seats the caller as host and replies created.
  - Join seats a new participant, or resumes a seat when the request
    carries a known token. A resumed seat keeps its hand; a second live
    connection with the same token replaces the first.
  - Leave returns the hand to the table, passes the host role to the next
    participant in join order and retires the session when the roster is
    empty.
  - Disconnect keeps the seat and hand but releases every lease.
  - SweepIdle retires sessions with nobody connected for IdleRetention.

Leave and SweepIdle decide to retire inside the session loop and mark the
session retiring there, so a join queued behind that decision is refused
instead of being admitted into a session about to stop.

# Persistence

With a Store configured, Checkpoint writes every session changed since its
last checkpoint and Restore reloads them at startup with every participant
disconnected. Retiring a session deletes its checkpoint except during
Shutdown.
*/
package session
