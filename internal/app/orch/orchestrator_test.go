package orch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Venue/internal/app"
	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
)

type fakeConn struct {
	mu     sync.Mutex
	types  []string
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return core.ErrBackpressure
	}
	var env struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(f, &env)
	c.types = append(c.types, env.Type)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) count(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.types {
		if t == typ {
			n++
		}
	}
	return n
}

func (c *fakeConn) setFull() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type session struct {
	id       domain.ParticipantID
	conn     *fakeConn
	canceled bool
}

func newOrch(t *testing.T, policy app.Policy) *Orchestrator {
	t.Helper()
	return New(app.NewRoomManager(nil), policy, metrics.New())
}

func connect(t *testing.T, o *Orchestrator, room domain.RoomName, name string) *session {
	t.Helper()
	s := &session{conn: &fakeConn{}}
	id, err := o.Connect(room, s.conn, core.JoinOptions{Name: name}, func() { s.canceled = true })
	if err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	s.id = id
	return s
}

func TestConnectAndRelay(t *testing.T) {
	o := newOrch(t, nil)
	a := connect(t, o, "main", "alice")
	b := connect(t, o, "main", "bob")

	o.OnFrame(a.id, []byte(`{"type":"chat","message":"hi"}`))
	if a.conn.count("chat") != 1 || b.conn.count("chat") != 1 {
		t.Fatalf("chat should reach both participants")
	}
	if o.Registry.Count() != 2 {
		t.Fatalf("want 2 sessions, got %d", o.Registry.Count())
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	o := newOrch(t, nil)
	a := connect(t, o, "main", "alice")
	b := connect(t, o, "side", "bob")

	o.OnFrame(a.id, []byte(`{"type":"chat","message":"hi"}`))
	if b.conn.count("chat") != 0 {
		t.Fatalf("chat leaked across rooms")
	}
	if b.conn.count("userJoin") != 0 {
		t.Fatalf("join leaked across rooms")
	}
	if o.Rooms.Count() != 2 {
		t.Fatalf("want 2 rooms, got %d", o.Rooms.Count())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	o := newOrch(t, nil)
	a := connect(t, o, "main", "alice")
	b := connect(t, o, "main", "bob")

	o.OnDisconnect(a.id)
	o.OnDisconnect(a.id)
	if got := b.conn.count("userLeave"); got != 1 {
		t.Fatalf("want one userLeave, got %d", got)
	}
	o.OnFrame(a.id, []byte(`{"type":"chat","message":"ghost"}`))
	if b.conn.count("chat") != 0 {
		t.Fatalf("frame from departed participant was relayed")
	}
}

func TestKickPolicyEvictsSlowConsumer(t *testing.T) {
	o := newOrch(t, app.SimplePolicy{Action: app.KickMember})
	a := connect(t, o, "main", "alice")
	slow := connect(t, o, "main", "slow")
	slow.conn.setFull()

	o.OnFrame(a.id, []byte(`{"type":"chat","message":"hi"}`))
	if !slow.canceled || !slow.conn.isClosed() {
		t.Fatalf("slow consumer should be canceled and closed")
	}
	if _, ok := o.Registry.RoomOf(slow.id); ok {
		t.Fatalf("slow consumer still bound")
	}
	if a.conn.count("userLeave") != 1 {
		t.Fatalf("remaining participant should see the slow one leave")
	}
}

func TestDropPolicyKeepsSlowConsumer(t *testing.T) {
	o := newOrch(t, app.SimplePolicy{Action: app.DropFrame})
	a := connect(t, o, "main", "alice")
	slow := connect(t, o, "main", "slow")
	slow.conn.setFull()

	o.OnFrame(a.id, []byte(`{"type":"chat","message":"hi"}`))
	if slow.canceled || slow.conn.isClosed() {
		t.Fatalf("drop policy must not close the connection")
	}
	if _, ok := o.Registry.RoomOf(slow.id); !ok {
		t.Fatalf("slow consumer should remain bound")
	}
}

func TestEvictRoom(t *testing.T) {
	o := newOrch(t, nil)
	a := connect(t, o, "main", "alice")
	b := connect(t, o, "main", "bob")
	c := connect(t, o, "side", "carol")

	if !o.EvictRoom("main") {
		t.Fatalf("EvictRoom returned false")
	}
	if !a.canceled || !b.canceled || c.canceled {
		t.Fatalf("only sessions of the evicted room should be canceled")
	}
	if !a.conn.isClosed() {
		t.Fatalf("evicted room should close its connections")
	}
	if _, ok := o.Rooms.Get("main"); ok {
		t.Fatalf("room still listed after eviction")
	}
	if o.EvictRoom("main") {
		t.Fatalf("second eviction should report false")
	}
}

func TestEmptyRoomIsRemoved(t *testing.T) {
	o := newOrch(t, nil)
	var removed []domain.RoomName
	o.OnRoomRemoved = func(r *core.Room) { removed = append(removed, r.Name()) }

	for i := 0; i < 100; i++ {
		s := connect(t, o, domain.RoomName(fmt.Sprintf("room-%d", i)), "visitor")
		o.OnDisconnect(s.id)
	}
	if n := o.Rooms.Count(); n != 0 {
		t.Fatalf("%d empty rooms left behind", n)
	}
	if len(removed) != 100 {
		t.Fatalf("OnRoomRemoved called %d times", len(removed))
	}

	a := connect(t, o, "main", "alice")
	b := connect(t, o, "main", "bob")
	o.OnDisconnect(a.id)
	if _, ok := o.Rooms.Get("main"); !ok {
		t.Fatalf("room with a participant left must stay")
	}
	o.OnDisconnect(b.id)
	if _, ok := o.Rooms.Get("main"); ok {
		t.Fatalf("room should go with its last participant")
	}

	c := connect(t, o, "main", "carol")
	if c.conn.count("init") != 1 || o.Rooms.Count() != 1 {
		t.Fatalf("reconnecting should open a fresh room")
	}
}

func TestKickAppliesPolicyToUnreachablePeers(t *testing.T) {
	o := newOrch(t, app.SimplePolicy{Action: app.KickMember})
	a := connect(t, o, "main", "alice")
	slow := connect(t, o, "main", "slow")
	c := connect(t, o, "main", "carol")
	slow.conn.setFull()

	o.Kick(a.id)
	if !a.canceled || !a.conn.isClosed() {
		t.Fatalf("kicked session should be canceled and closed")
	}
	if !slow.canceled || !slow.conn.isClosed() {
		t.Fatalf("peer that missed the departure should be kicked too")
	}
	if c.canceled || o.Registry.Count() != 1 {
		t.Fatalf("healthy peer must stay, sessions = %d", o.Registry.Count())
	}
	if c.conn.count("userLeave") != 2 {
		t.Fatalf("carol should see both departures, got %d", c.conn.count("userLeave"))
	}
}
