// Package sse implements the push-only event-stream transport. Frames are
// produced by pkg/wire and written verbatim, one flush per event.
package sse

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
)

const (
	sendBufferSize = 256
	writeTimeout   = 10 * time.Second
)

// Conn adapts an http response stream to domain.Conn. Frames are queued and
// written by a dedicated goroutine, so Send never blocks on a slow client;
// a client that stops reading fills the queue and gets pruned by the hub.
type Conn struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	flusher  http.Flusher
	sendChan chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewConn wraps a streaming response and starts its writer. The caller must
// have verified that the writer supports flushing.
func NewConn(w http.ResponseWriter, flusher http.Flusher) *Conn {
	c := &Conn{
		w:        w,
		rc:       http.NewResponseController(w),
		flusher:  flusher,
		sendChan: make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.writeLoop()
	return c
}

// Send implements domain.Conn. It never blocks: the frame is either queued
// for the writer or rejected immediately.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrConnectionClosed
	}

	select {
	case c.sendChan <- frame:
		return nil
	default:
		return errors.New(errors.ErrorTypeTransport, "SEND_BUFFER_FULL", "send buffer is full")
	}
}

// Close implements domain.Conn. It only signals; the HTTP handler returns
// once Done fires, which ends the response stream.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

// Done fires when the connection is closed server-side.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the writer goroutine has exited. The HTTP handler calls
// it before returning so no write outlives the response.
func (c *Conn) Wait() {
	c.wg.Wait()
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.sendChan:
			if err := c.write(frame); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) write(frame []byte) error {
	// Not every ResponseWriter supports deadlines; test recorders don't.
	_ = c.rc.SetWriteDeadline(time.Now().Add(writeTimeout))

	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}
