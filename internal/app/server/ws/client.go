package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"supportdesk/internal/core/domain"
)

// RuntimeClient is one live websocket as the room sees it. Send only queues;
// a dedicated goroutine owns writes to the socket.
type RuntimeClient struct {
	ctx     context.Context
	cancel  context.CancelFunc
	ws      *WebSocket
	connID  string
	out     chan []byte
	closing chan closeFrame

	closeOnce    sync.Once
	shutdownOnce sync.Once
}

type closeFrame struct {
	code   int
	reason string
}

func NewClient(parent context.Context, ws *WebSocket, buffer int) *RuntimeClient {
	if buffer <= 0 {
		buffer = 256
	}
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:     ctx,
		cancel:  cancel,
		ws:      ws,
		connID:  uuid.NewString(),
		out:     make(chan []byte, buffer),
		closing: make(chan closeFrame, 1),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ConnID() string { return c.connID }

// Send never blocks: a client that cannot keep up loses the frame.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return domain.ErrClientClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// CloseWith asks the writer to flush queued frames, send a close frame
// with code and reason and then close the socket. It does not block.
func (c *RuntimeClient) CloseWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closing <- closeFrame{code: code, reason: reason}
	})
}

// Close drops the socket without a close handshake.
func (c *RuntimeClient) Close() {
	c.shutdownOnce.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) flush() {
	for {
		select {
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *RuntimeClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ws.Done():
			c.Close()
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.Close()
				return
			}
		case f := <-c.closing:
			c.flush()
			_ = c.ws.WriteClose(f.code, f.reason)
			c.Close()
			return
		case <-ticker.C:
			if err := c.ws.WritePing(); err != nil {
				c.Close()
				return
			}
		}
	}
}
