package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Venue/internal/domain"
)

var errFakeClosed = errors.New("fake connection closed")

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errFakeClosed
	}
	if c.full {
		return ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) setFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messages decodes every frame received so far and clears the buffer.
func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()
	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("frame is not JSON: %v (%s)", err, f)
		}
		out = append(out, m)
	}
	return out
}

func ofType(msgs []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type fakeVerifier struct{ token string }

func (v fakeVerifier) VerifyHostToken(token string) error {
	if token != v.token {
		return errors.New("bad token")
	}
	return nil
}

type member struct {
	id   domain.ParticipantID
	conn *fakeConn
}

func join(t *testing.T, r *Room, name string, host bool) member {
	t.Helper()
	c := &fakeConn{}
	id, err := r.Join(c, JoinOptions{Name: name, Host: host})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return member{id: id, conn: c}
}

func send(t *testing.T, r *Room, from member, v map[string]any) []domain.ParticipantID {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return r.HandleFrame(from.id, b)
}

func drain(t *testing.T, ms ...member) {
	t.Helper()
	for _, m := range ms {
		m.conn.messages(t)
	}
}
