package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/felt/pkg/protocol"
	"github.com/cuemby/felt/pkg/session"
	"github.com/cuemby/felt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a session.Sender that keeps every message per connection
type recorder struct {
	mu   sync.Mutex
	sent map[string][]protocol.Message
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]protocol.Message)}
}

func (r *recorder) Send(connID string, msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[connID] = append(r.sent[connID], msg)
}

// take returns and forgets everything sent to connID
func (r *recorder) take(connID string) []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent[connID]
	delete(r.sent, connID)
	return out
}

func ofType(msgs []protocol.Message, rt protocol.ResponseType) []protocol.Message {
	var out []protocol.Message
	for _, m := range msgs {
		if m.Type == rt {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	t    *testing.T
	reg  *session.Registry
	disp *Dispatcher
	rec  *recorder
	code string
}

// newFixture starts a registry whose tables hold ten loose, face-up cards
func newFixture(t *testing.T) *fixture {
	t.Helper()
	initial := types.TableState{NextStackID: 1, NextZoneID: 1}
	for i := 1; i <= 10; i++ {
		initial.Items = append(initial.Items, types.Item{
			ID: i, Front: i + 100, Back: 99, X: float64(i * 50), Y: 100, Z: int64(i), FaceUp: true,
		})
	}
	initial.Depth = 10

	rec := newRecorder()
	reg, err := session.NewRegistry(session.Config{
		Initial:    initial,
		LeaseTTL:   time.Minute,
		LeaseSweep: time.Hour,
	}, rec, nil, nil)
	require.NoError(t, err)
	t.Cleanup(reg.Shutdown)

	return &fixture{t: t, reg: reg, disp: NewDispatcher(reg, rec), rec: rec}
}

func (f *fixture) send(connID string, intent protocol.Intent, payload any) {
	f.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(f.t, err)
	frame, err := json.Marshal(protocol.Envelope{Type: string(intent), Ref: "r1", Payload: raw})
	require.NoError(f.t, err)
	_ = f.disp.Handle(context.Background(), connID, frame)
}

// create opens a session as host and returns the host's participant id
func (f *fixture) create(connID, name string) string {
	f.t.Helper()
	f.send(connID, protocol.IntentCreate, map[string]any{"displayName": name})
	msgs := ofType(f.rec.take(connID), protocol.TypeCreated)
	require.Len(f.t, msgs, 1)
	created := msgs[0].Payload.(protocol.Created)
	f.code = created.Code
	return created.ParticipantID
}

func (f *fixture) join(connID, name string) string {
	f.t.Helper()
	f.send(connID, protocol.IntentJoin, map[string]any{"code": f.code, "displayName": name})
	msgs := ofType(f.rec.take(connID), protocol.TypeJoined)
	require.Len(f.t, msgs, 1)
	return msgs[0].Payload.(protocol.Joined).ParticipantID
}

func (f *fixture) rejection(connID string) *protocol.Error {
	f.t.Helper()
	msgs := ofType(f.rec.take(connID), protocol.TypeError)
	require.Len(f.t, msgs, 1, "expected exactly one rejection")
	return msgs[0].Payload.(*protocol.Error)
}

// twoPlayers returns a session with alice (host) on conn "a" and bob on "b"
func twoPlayers(t *testing.T) (*fixture, string, string) {
	f := newFixture(t)
	alice := f.create("a", "alice")
	bob := f.join("b", "bob")
	f.rec.take("a")
	f.rec.take("b")
	return f, alice, bob
}

func TestLockConflictAndRelease(t *testing.T) {
	f, alice, _ := twoPlayers(t)

	f.send("a", protocol.IntentItemLock, map[string]any{"id": 5})
	for _, conn := range []string{"a", "b"} {
		locked := ofType(f.rec.take(conn), protocol.TypeItemLocked)
		require.Len(t, locked, 1, conn)
		lc := locked[0].Payload.(protocol.LockChange)
		assert.Equal(t, 5, lc.ID)
		assert.Equal(t, alice, lc.By)
		require.Len(t, lc.Items, 1)
		assert.Greater(t, lc.Items[0].Z, int64(10), "locking raises the item")
	}

	f.send("b", protocol.IntentItemMove, map[string]any{"id": 5, "x": 999, "y": 999})
	perr := f.rejection("b")
	assert.Equal(t, protocol.KindItemLocked, perr.Kind)
	assert.Equal(t, protocol.IntentItemMove, perr.Intent)
	assert.Equal(t, "r1", perr.Ref)
	current := perr.Current.(types.Item)
	assert.Equal(t, 250.0, current.X, "snap-back carries the authoritative position")
	assert.Equal(t, alice, current.LockedBy)
	assert.Empty(t, f.rec.take("a"), "a rejection is never broadcast")

	f.send("a", protocol.IntentItemUnlock, map[string]any{"id": 5})
	assert.Len(t, ofType(f.rec.take("b"), protocol.TypeItemUnlocked), 1)
	f.rec.take("a")

	f.send("b", protocol.IntentItemMove, map[string]any{"id": 5, "x": 400, "y": 300})
	moved := ofType(f.rec.take("a"), protocol.TypeItemMoved)
	require.Len(t, moved, 1)
	ch := moved[0].Payload.(protocol.Change)
	require.Len(t, ch.Items, 1)
	assert.Equal(t, 400.0, ch.Items[0].X)
	assert.Equal(t, 300.0, ch.Items[0].Y)
}

func TestUnlockByNonHolderIsRejected(t *testing.T) {
	f, _, _ := twoPlayers(t)

	f.send("a", protocol.IntentItemLock, map[string]any{"id": 2})
	f.rec.take("a")
	f.rec.take("b")

	f.send("b", protocol.IntentItemUnlock, map[string]any{"id": 2})
	assert.Equal(t, protocol.KindItemLocked, f.rejection("b").Kind)

	// Unlocking something nobody holds is a silent no-op
	f.send("b", protocol.IntentItemUnlock, map[string]any{"id": 3})
	assert.Empty(t, f.rec.take("b"))
}

func TestHandPrivacy(t *testing.T) {
	f, alice, _ := twoPlayers(t)

	f.send("a", protocol.IntentHandAdd, map[string]any{"itemId": 3})

	own := ofType(f.rec.take("a"), protocol.TypeHandUpdated)
	require.Len(t, own, 1)
	hand := own[0].Payload.(protocol.HandUpdated)
	require.Len(t, hand.Items, 1)
	assert.Equal(t, 103, hand.Items[0].Front)

	bobMsgs := f.rec.take("b")
	assert.Empty(t, ofType(bobMsgs, protocol.TypeHandUpdated))
	counts := ofType(bobMsgs, protocol.TypeHandCount)
	require.Len(t, counts, 1)
	hc := counts[0].Payload.(protocol.HandCount)
	assert.Equal(t, alice, hc.PlayerID)
	assert.Equal(t, 1, hc.Count)
	assert.Equal(t, []int{3}, hc.Removed)
	for _, it := range hc.Items {
		assert.NotEqual(t, 3, it.ID, "held cards never appear in other players' deltas")
	}

	f.send("b", protocol.IntentHandRemove, map[string]any{"itemId": 3, "x": 1, "y": 1})
	assert.Equal(t, protocol.KindNotYourItem, f.rejection("b").Kind)

	f.send("b", protocol.IntentItemMove, map[string]any{"id": 3, "x": 1, "y": 1})
	assert.Equal(t, protocol.KindNotYourItem, f.rejection("b").Kind)

	f.send("b", protocol.IntentHandAdd, map[string]any{"itemId": 3})
	assert.Equal(t, protocol.KindNotYourItem, f.rejection("b").Kind)

	f.send("a", protocol.IntentHandRemove, map[string]any{"itemId": 4, "x": 1, "y": 1})
	assert.Equal(t, protocol.KindNotInHand, f.rejection("a").Kind)
}

func TestHandRemovePlaysCardForEveryone(t *testing.T) {
	f, _, _ := twoPlayers(t)

	f.send("a", protocol.IntentHandAdd, map[string]any{"itemId": 7})
	f.rec.take("a")
	f.rec.take("b")

	f.send("a", protocol.IntentHandRemove, map[string]any{"itemId": 7, "x": 500, "y": 500, "faceUp": true})
	counts := ofType(f.rec.take("b"), protocol.TypeHandCount)
	require.Len(t, counts, 1)
	hc := counts[0].Payload.(protocol.HandCount)
	assert.Zero(t, hc.Count)
	require.Len(t, hc.Items, 1)
	assert.Equal(t, 7, hc.Items[0].ID)
	assert.Equal(t, 500.0, hc.Items[0].X)
	assert.True(t, hc.Items[0].FaceUp)

	own := ofType(f.rec.take("a"), protocol.TypeHandUpdated)
	require.Len(t, own, 1)
	assert.Empty(t, own[0].Payload.(protocol.HandUpdated).Items)
}

func TestHandReorderIsPrivate(t *testing.T) {
	f, _, _ := twoPlayers(t)
	for _, id := range []int{1, 2, 3} {
		f.send("a", protocol.IntentHandAdd, map[string]any{"itemId": id})
	}
	f.rec.take("a")
	f.rec.take("b")

	f.send("a", protocol.IntentHandReorder, map[string]any{"from": 2, "to": 0})
	own := ofType(f.rec.take("a"), protocol.TypeHandUpdated)
	require.Len(t, own, 1)
	items := own[0].Payload.(protocol.HandUpdated).Items
	require.Len(t, items, 3)
	assert.Equal(t, []int{3, 1, 2}, []int{items[0].ID, items[1].ID, items[2].ID})
	assert.Empty(t, f.rec.take("b"))

	f.send("a", protocol.IntentHandReorder, map[string]any{"from": 0, "to": 9})
	assert.Equal(t, protocol.KindInvalid, f.rejection("a").Kind)
}

func TestStackLockBlocksMerge(t *testing.T) {
	f, _, _ := twoPlayers(t)

	f.send("a", protocol.IntentStackCreate, map[string]any{"itemIds": []int{1, 2}, "x": 10, "y": 10})
	created := ofType(f.rec.take("b"), protocol.TypeStackCreated)
	require.Len(t, created, 1)
	first := created[0].Payload.(protocol.StackCreated).StackID

	f.send("a", protocol.IntentStackCreate, map[string]any{"itemIds": []int{3, 4}, "x": 300, "y": 10})
	second := ofType(f.rec.take("b"), protocol.TypeStackCreated)[0].Payload.(protocol.StackCreated).StackID
	f.rec.take("a")

	f.send("a", protocol.IntentStackLock, map[string]any{"id": second})
	f.rec.take("a")
	f.rec.take("b")

	f.send("b", protocol.IntentStackMerge, map[string]any{"sourceId": first, "targetId": second})
	perr := f.rejection("b")
	assert.Equal(t, protocol.KindStackLocked, perr.Kind)
	st := perr.Current.(types.Stack)
	assert.Equal(t, []int{3, 4}, st.Items)

	f.send("b", protocol.IntentItemMove, map[string]any{"id": 3, "x": 0, "y": 0})
	assert.Equal(t, protocol.KindStackLocked, f.rejection("b").Kind, "a stack lease covers its cards")

	f.send("a", protocol.IntentStackMerge, map[string]any{"sourceId": first, "targetId": second})
	merged := ofType(f.rec.take("b"), protocol.TypeStackMerged)
	require.Len(t, merged, 1)
	sm := merged[0].Payload.(protocol.StackMerged)
	assert.Equal(t, []int{first}, sm.DeletedStacks)
	require.Len(t, sm.Stacks, 1)
	assert.Equal(t, []int{1, 2, 3, 4}, sm.Stacks[0].Items)
}

func TestStackOperationsBroadcastUpdates(t *testing.T) {
	f, _, _ := twoPlayers(t)
	f.send("a", protocol.IntentStackCreate, map[string]any{"itemIds": []int{1, 2, 3}, "x": 10, "y": 10})
	id := ofType(f.rec.take("a"), protocol.TypeStackCreated)[0].Payload.(protocol.StackCreated).StackID
	f.rec.take("b")

	f.send("b", protocol.IntentStackReorder, map[string]any{"id": id, "from": 0, "to": 2})
	upd := ofType(f.rec.take("a"), protocol.TypeStackUpdated)
	require.Len(t, upd, 1)
	assert.Equal(t, []int{2, 3, 1}, upd[0].Payload.(protocol.Change).Stacks[0].Items)

	f.send("b", protocol.IntentStackSetFaces, map[string]any{"id": id, "faceUp": false})
	upd = ofType(f.rec.take("a"), protocol.TypeStackUpdated)
	require.Len(t, upd, 1)
	for _, it := range upd[0].Payload.(protocol.Change).Items {
		assert.False(t, it.FaceUp)
	}

	f.send("b", protocol.IntentStackRemoveItem, map[string]any{"itemId": 9})
	assert.Equal(t, protocol.KindInvalid, f.rejection("b").Kind)

	f.send("b", protocol.IntentStackShuffle, map[string]any{"id": 404})
	assert.Equal(t, protocol.KindNotFound, f.rejection("b").Kind)
}

func TestZoneDeleteLeavesCardsInPlace(t *testing.T) {
	f, _, _ := twoPlayers(t)

	f.send("a", protocol.IntentZoneCreate, map[string]any{
		"bounds": map[string]any{"x": 100, "y": 100, "width": 400, "height": 400},
		"label":  "discard",
	})
	zc := ofType(f.rec.take("b"), protocol.TypeZoneCreated)
	require.Len(t, zc, 1)
	zoneID := zc[0].Payload.(protocol.ZoneCreated).ZoneID

	f.send("a", protocol.IntentZoneAddItem, map[string]any{"id": zoneID, "itemId": 6})
	upd := ofType(f.rec.take("b"), protocol.TypeZoneUpdated)
	require.Len(t, upd, 1)
	added := upd[0].Payload.(protocol.Change)
	require.Len(t, added.Items, 1)
	assert.Equal(t, 300.0, added.Items[0].X)
	f.rec.take("a")

	f.send("b", protocol.IntentZoneDelete, map[string]any{"id": zoneID})
	del := ofType(f.rec.take("a"), protocol.TypeZoneDeleted)
	require.Len(t, del, 1)
	ch := del[0].Payload.(protocol.Change)
	assert.Equal(t, []int{zoneID}, ch.DeletedZones)
	require.Len(t, ch.Items, 1)
	assert.Equal(t, 300.0, ch.Items[0].X)
	assert.Zero(t, ch.Items[0].StackID)
}

func TestLockedZoneRejectsEdits(t *testing.T) {
	f, _, _ := twoPlayers(t)

	f.send("a", protocol.IntentZoneCreate, map[string]any{
		"bounds": map[string]any{"x": 0, "y": 0, "width": 300, "height": 200},
	})
	zoneID := ofType(f.rec.take("a"), protocol.TypeZoneCreated)[0].Payload.(protocol.ZoneCreated).ZoneID

	f.send("a", protocol.IntentZoneUpdate, map[string]any{"id": zoneID, "locked": true})
	require.Len(t, ofType(f.rec.take("b"), protocol.TypeZoneUpdated), 1)
	f.rec.take("a")

	f.send("b", protocol.IntentZoneUpdate, map[string]any{"id": zoneID, "label": "mine"})
	perr := f.rejection("b")
	assert.Equal(t, protocol.KindZoneLocked, perr.Kind)
	assert.True(t, perr.Current.(types.Zone).Locked)

	f.send("b", protocol.IntentZoneDelete, map[string]any{"id": zoneID})
	assert.Equal(t, protocol.KindZoneLocked, f.rejection("b").Kind)

	f.send("b", protocol.IntentZoneAddItem, map[string]any{"id": zoneID, "itemId": 1})
	assert.Len(t, ofType(f.rec.take("a"), protocol.TypeZoneUpdated), 1, "cards may still be dropped into a locked zone")

	f.send("b", protocol.IntentZoneUpdate, map[string]any{"id": zoneID, "locked": false})
	assert.Len(t, ofType(f.rec.take("a"), protocol.TypeZoneUpdated), 1)
}

func TestHiddenZoneMasksFacesPerViewer(t *testing.T) {
	f, alice, _ := twoPlayers(t)

	f.send("a", protocol.IntentZoneCreate, map[string]any{
		"bounds":     map[string]any{"x": 0, "y": 0, "width": 300, "height": 200},
		"visibility": "owner-only",
		"ownerId":    alice,
	})
	zoneID := ofType(f.rec.take("a"), protocol.TypeZoneCreated)[0].Payload.(protocol.ZoneCreated).ZoneID
	f.rec.take("b")

	f.send("a", protocol.IntentZoneAddItem, map[string]any{"id": zoneID, "itemId": 8})

	ownerView := ofType(f.rec.take("a"), protocol.TypeZoneUpdated)[0].Payload.(protocol.Change)
	require.Len(t, ownerView.Items, 1)
	assert.Equal(t, 108, ownerView.Items[0].Front)
	assert.False(t, ownerView.Items[0].Masked)

	otherView := ofType(f.rec.take("b"), protocol.TypeZoneUpdated)[0].Payload.(protocol.Change)
	require.Len(t, otherView.Items, 1)
	assert.Equal(t, -1, otherView.Items[0].Front)
	assert.True(t, otherView.Items[0].Masked)
	assert.False(t, otherView.Items[0].FaceUp)

	f.send("a", protocol.IntentZoneCreate, map[string]any{
		"bounds":     map[string]any{"x": 0, "y": 0, "width": 300, "height": 200},
		"visibility": "owner-only",
		"ownerId":    "nobody",
	})
	assert.Equal(t, protocol.KindNotFound, f.rejection("a").Kind)
}

func TestHostOnlySessionOperations(t *testing.T) {
	f, _, _ := twoPlayers(t)

	f.send("b", protocol.IntentSessionName, map[string]any{"name": "Bob's table"})
	assert.Equal(t, protocol.KindInvalid, f.rejection("b").Kind)

	f.send("a", protocol.IntentSessionName, map[string]any{"name": "Friday rummy"})
	for _, conn := range []string{"a", "b"} {
		msgs := ofType(f.rec.take(conn), protocol.TypeNameUpdated)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Friday rummy", msgs[0].Payload.(protocol.NameUpdated).Name)
	}

	f.send("a", protocol.IntentSessionSettings, map[string]any{"snapToGrid": true})
	msgs := ofType(f.rec.take("b"), protocol.TypeSettingsUpdated)
	require.Len(t, msgs, 1)
	settings := msgs[0].Payload.(protocol.SettingsUpdated).Settings
	assert.True(t, settings.SnapToGrid)
	assert.Equal(t, 1.0, settings.CardScale, "untouched settings keep their values")

	f.send("a", protocol.IntentSessionVisibility, map[string]any{"public": true})
	f.rec.take("a")
	f.rec.take("b")
	list := f.reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Friday rummy", list[0].Name)
}

func TestSessionResetRestoresInitialTable(t *testing.T) {
	f, _, _ := twoPlayers(t)
	f.send("a", protocol.IntentItemMove, map[string]any{"id": 1, "x": 900, "y": 900})
	f.send("b", protocol.IntentHandAdd, map[string]any{"itemId": 2})
	f.rec.take("a")
	f.rec.take("b")

	f.send("a", protocol.IntentSessionReset, nil)
	for _, conn := range []string{"a", "b"} {
		msgs := ofType(f.rec.take(conn), protocol.TypeState)
		require.Len(t, msgs, 1, conn)
		st := msgs[0].Payload.(protocol.State)
		assert.Equal(t, "reset", st.Reason)
		assert.Len(t, st.State.Items, 10)
		assert.Equal(t, 50.0, st.State.Items[0].X)
		for _, h := range st.State.Hands {
			assert.Zero(t, h.Count)
		}
	}
}

func TestPointerGoesToOthersOnly(t *testing.T) {
	f, alice, _ := twoPlayers(t)

	f.send("a", protocol.IntentPointer, map[string]any{"x": 12, "y": 34, "state": "grab"})
	assert.Empty(t, f.rec.take("a"))
	msgs := ofType(f.rec.take("b"), protocol.TypePointer)
	require.Len(t, msgs, 1)
	p := msgs[0].Payload.(types.Pointer)
	assert.Equal(t, alice, p.ParticipantID)
	assert.Equal(t, 12.0, p.X)
	assert.Equal(t, "grab", p.State)
}

func TestRejectionsOutsideASession(t *testing.T) {
	f := newFixture(t)

	_ = f.disp.Handle(context.Background(), "x", []byte(`{"type":`))
	assert.Equal(t, protocol.KindInvalid, f.rejection("x").Kind)

	_ = f.disp.Handle(context.Background(), "x", []byte(`{"type":"teleport"}`))
	assert.Equal(t, protocol.KindInvalid, f.rejection("x").Kind)

	f.send("x", protocol.IntentItemMove, map[string]any{"id": 1, "x": 0, "y": 0})
	assert.Equal(t, protocol.KindInvalid, f.rejection("x").Kind)

	f.send("x", protocol.IntentJoin, map[string]any{"code": "ZZZZZZ", "displayName": "eve"})
	assert.Equal(t, protocol.KindNotFound, f.rejection("x").Kind)

	f.send("x", protocol.IntentList, nil)
	msgs := ofType(f.rec.take("x"), protocol.TypeList)
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].Payload.(protocol.SessionList).Sessions)
}

func TestDispatcherRegistersEveryTableIntent(t *testing.T) {
	d := NewDispatcher(nil, newRecorder())
	lifecycle := map[protocol.Intent]bool{
		protocol.IntentCreate: true,
		protocol.IntentJoin:   true,
		protocol.IntentLeave:  true,
		protocol.IntentList:   true,
	}
	for _, intent := range protocol.Intents() {
		if lifecycle[intent] {
			assert.False(t, d.Handles(intent), intent)
			continue
		}
		assert.True(t, d.Handles(intent), intent)
	}
}
