package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
)

// ConnOptions represents websocket connection options
type ConnOptions struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultConnOptions returns default connection options
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512 * 1024, // 512KB
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// MessageHandler handles an inbound socket message.
type MessageHandler func(message []byte) error

// Conn wraps a websocket connection with buffered, pump-driven I/O. It
// implements domain.Conn; writes never block the caller.
type Conn struct {
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logging.Logger
	options  ConnOptions
	sendChan chan []byte
	handler  MessageHandler
	onPong   func()
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
}

// NewConn wraps an upgraded websocket connection.
func NewConn(conn *websocket.Conn, logger *logging.Logger, options ConnOptions) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		options:  options,
		sendChan: make(chan []byte, 256),
	}
}

// Send implements domain.Conn. It never blocks: the frame is either queued
// for the write pump or rejected immediately.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return domain.ErrConnectionClosed
	}
	c.mu.RUnlock()

	select {
	case c.sendChan <- frame:
		return nil
	default:
		return errors.New(errors.ErrorTypeTransport, "SEND_BUFFER_FULL", "send buffer is full")
	}
}

// Receive sets the handler for inbound messages. Must be called before Start.
func (c *Conn) Receive(handler MessageHandler) {
	c.handler = handler
}

// OnPong sets a callback invoked on every pong from the client. Must be
// called before Start.
func (c *Conn) OnPong(fn func()) {
	c.onPong = fn
}

// Close implements domain.Conn. It only signals: the context is cancelled
// and the underlying socket closed, which makes both pumps exit on their
// own. It never waits for them, so it is safe to call from a pump goroutine
// (the registry prunes from inside message handling).
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("error closing websocket connection", "error", err)
	}

	return nil
}

// Wait blocks until both pumps have exited. The serving handler calls it
// after the connection dies; it must never be called from a pump goroutine.
func (c *Conn) Wait() {
	c.wg.Wait()
}

// Context returns a context that ends when the connection dies.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Start starts the read and write pumps.
func (c *Conn) Start() {
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// readPump pumps messages from the websocket connection
func (c *Conn) readPump() {
	defer c.wg.Done()
	defer c.cancel()

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		if c.onPong != nil {
			c.onPong()
		}
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			messageType, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Debug("websocket read error", "error", err)
				}
				return
			}

			if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
				continue
			}

			if c.handler != nil {
				if err := c.handler(message); err != nil {
					c.logger.Error("message handler error", "error", err)
				}
			}
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *Conn) writePump() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", "error", err)
				c.cancel()
				return
			}

			// drain any queued messages
			n := len(c.sendChan)
			for i := 0; i < n; i++ {
				select {
				case msg := <-c.sendChan:
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						c.logger.Debug("websocket write error", "error", err)
						c.cancel()
						return
					}
				default:
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping error", "error", err)
				c.cancel()
				return
			}
		}
	}
}
