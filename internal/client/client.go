// Package client is a Go client for the venue room server. It keeps a local
// mirror of the room and hands decoded events to UI hooks.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize = 256
	writeWait        = 10 * time.Second
)

var ErrClosed = errors.New("client closed")

type Options struct {
	Room     string
	Name     string
	Token    string
	Header   http.Header
	Dialer   *websocket.Dialer
	Handlers Handlers
	// QueueSize bounds the callbacks waiting for the dispatcher. When full,
	// callbacks are dropped and the mirror stays current.
	QueueSize int
}

type Client struct {
	ws       *websocket.Conn
	mirror   *Mirror
	handlers Handlers
	queue    chan func()

	writeMu sync.Mutex
	dropped atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	errMu     sync.Mutex
	err       error
}

// RoomURL builds the WebSocket endpoint for base, which may use http(s) or ws(s).
func RoomURL(base, room, name, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws/room"
	q := url.Values{}
	if room != "" {
		q.Set("room", room)
	}
	if name != "" {
		q.Set("name", name)
	}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func Dial(ctx context.Context, base string, opts Options) (*Client, error) {
	target, err := RoomURL(base, opts.Room, opts.Name, opts.Token)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, target, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	c := &Client{
		ws:       ws,
		mirror:   NewMirror(),
		handlers: opts.Handlers,
		queue:    make(chan func(), opts.QueueSize),
		done:     make(chan struct{}),
	}
	c.wg.Add(2)
	go c.readLoop()
	go c.dispatchLoop()
	return c, nil
}

func (c *Client) Mirror() *Mirror { return c.mirror }

// Dropped counts callbacks discarded because the queue was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		_ = c.ws.Close()
		close(c.done)
	})
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			c.shutdown(err)
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		msg, err := c.mirror.Apply(env.Type, data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("apply frame")
			continue
		}
		if cb := c.handlers.callback(msg); cb != nil {
			c.enqueue(cb)
		}
	}
}

func (c *Client) enqueue(cb func()) {
	select {
	case c.queue <- cb:
	default:
		c.dropped.Add(1)
	}
}

func (c *Client) dispatchLoop() {
	defer c.wg.Done()
	for {
		select {
		case cb := <-c.queue:
			cb()
		case <-c.done:
			return
		}
	}
}

func (c *Client) send(v any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// frame merges the fields of body with the type discriminator.
func frame(typ string, body any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	out["type"], _ = json.Marshal(typ)
	return out, nil
}

func (c *Client) sendFrame(typ string, body any) error {
	f, err := frame(typ, body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	return c.send(f)
}

func (c *Client) SendPosition(p domain.Vec3) error {
	return c.sendFrame(protocol.TypePosition, protocol.PositionIn{X: &p.X, Y: &p.Y, Z: &p.Z})
}

func (c *Client) SendReaction(reaction, color string) error {
	return c.sendFrame(protocol.TypeReaction, protocol.ReactionIn{Reaction: reaction, Color: color})
}

func (c *Client) SendChat(message string) error {
	return c.sendFrame(protocol.TypeChat, protocol.ChatIn{Message: message})
}

func (c *Client) SetName(name string) error {
	return c.sendFrame(protocol.TypeSetName, protocol.SetNameIn{Name: name})
}

func (c *Client) RequestSpeak() error {
	return c.send(protocol.Envelope{Type: protocol.TypeRequestSpeak})
}

func (c *Client) CancelSpeak() error {
	return c.send(protocol.Envelope{Type: protocol.TypeCancelSpeak})
}

func (c *Client) LeaveStage() error {
	return c.send(protocol.Envelope{Type: protocol.TypeLeaveStage})
}

func (c *Client) ApproveSpeak(id domain.ParticipantID) error {
	return c.sendFrame(protocol.TypeApproveSpeak, protocol.TargetIn{UserID: id})
}

func (c *Client) DenySpeak(id domain.ParticipantID) error {
	return c.sendFrame(protocol.TypeDenySpeak, protocol.TargetIn{UserID: id})
}

func (c *Client) KickSpeaker(id domain.ParticipantID) error {
	return c.sendFrame(protocol.TypeKickSpeaker, protocol.TargetIn{UserID: id})
}

func (c *Client) ChangeBackground(background string) error {
	return c.sendFrame(protocol.TypeBackgroundChange, protocol.BackgroundIn{Background: background})
}

func (c *Client) ChangeBrightness(v float64) error {
	return c.sendFrame(protocol.TypeBrightnessChange, protocol.BrightnessIn{Brightness: &v})
}

func (c *Client) ClaimHost(token string) error {
	return c.sendFrame(protocol.TypeClaimHost, protocol.ClaimHostIn{Token: token})
}

func (c *Client) Ping() error {
	return c.send(protocol.Envelope{Type: protocol.TypePing})
}
