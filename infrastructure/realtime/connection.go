package realtime

import (
	"care-chat/domain"
	"care-chat/errors"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 1 << 20
)

type ConnConfig struct {
	WriteTimeout time.Duration
	ReadLimit    int64
	// IdleTimeout bounds how long Receive waits without any frame or pong, 0 disables it.
	IdleTimeout time.Duration
}

// Connection adapts a gorilla websocket to a chat channel.
// Writes are serialized, reads belong to the single session goroutine.
type Connection struct {
	ws     *websocket.Conn
	config ConnConfig
	mu     sync.Mutex
	once   sync.Once
	closed chan struct{}
	// Unix nanos of the last inbound frame or pong
	lastSeen atomic.Int64
}

func NewConnection(ws *websocket.Conn, config ConnConfig) *Connection {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = DefaultReadLimit
	}
	c := &Connection{ws: ws, config: config, closed: make(chan struct{})}

	ws.SetReadLimit(config.ReadLimit)
	c.touch()
	ws.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	return c
}

// Send writes frame as one JSON text message. A ping frame is followed by a
// protocol ping so that a silent client still proves it is alive with a pong.
func (c *Connection) Send(frame any) error {
	select {
	case <-c.closed:
		return errors.ErrChannelClosed
	default:
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(c.config.WriteTimeout)
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	if _, ok := frame.(domain.PingFrame); ok {
		return c.ws.WriteControl(websocket.PingMessage, nil, deadline)
	}
	return nil
}

// Receive blocks for the next client frame.
// Any read failure is reported as errors.ErrChannelClosed, undecodable
// payloads as errors.ErrMalformedFrame.
func (c *Connection) Receive() (domain.InboundFrame, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		return domain.InboundFrame{}, fmt.Errorf("%w: %v", errors.ErrChannelClosed, err)
	}
	c.touch()
	if messageType != websocket.TextMessage {
		return domain.InboundFrame{}, fmt.Errorf("%w: binary frame", errors.ErrMalformedFrame)
	}

	var frame domain.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return domain.InboundFrame{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	return frame, nil
}

// Close sends a close frame with code and reason then releases the socket.
// Only the first call has an effect, it also unblocks a pending Receive.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(c.config.WriteTimeout))
		_ = c.ws.Close()
	})
}

// LastSeen is when the client last sent a frame or answered a ping.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// touch records client activity and pushes the read deadline back.
func (c *Connection) touch() {
	now := time.Now()
	c.lastSeen.Store(now.UnixNano())
	if c.config.IdleTimeout <= 0 {
		return
	}
	_ = c.ws.SetReadDeadline(now.Add(c.config.IdleTimeout))
}
