package ws

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SSEClient streams Server-Sent Events over an HTTP response writer.
type SSEClient struct {
	mu       sync.Mutex
	writer   io.Writer
	flusher  http.Flusher
	deadline func(time.Time) error
	log      *slog.Logger
	closed   bool
	last     time.Time
	done     chan struct{}
}

// NewSSEClient builds an SSE client instance. Every write is bounded by
// writeWait; a reader that stops consuming fails the write and the client
// closes.
func NewSSEClient(w http.ResponseWriter, flusher http.Flusher, logger *slog.Logger) *SSEClient {
	return &SSEClient{
		writer:   w,
		flusher:  flusher,
		deadline: http.NewResponseController(w).SetWriteDeadline,
		log:      logger,
		last:     time.Now().UTC(),
		done:     make(chan struct{}),
	}
}

func (c *SSEClient) write(frame string, args ...any) error {
	if err := c.deadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := fmt.Fprintf(c.writer, frame, args...); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// Send emits a status event to the SSE stream.
func (c *SSEClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if err := c.write("event: status\ndata: %s\n\n", payload); err != nil {
		c.markClosed()
		c.log.Warn("sse send failed", "error", err)
		return err
	}
	c.last = time.Now().UTC()
	return nil
}

// Heartbeat emits a comment frame to keep the connection alive.
func (c *SSEClient) Heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if err := c.write(": ping\n\n"); err != nil {
		c.markClosed()
		c.log.Warn("sse heartbeat failed", "error", err)
		return err
	}
	c.last = time.Now().UTC()
	return nil
}

// Close marks the stream as closed.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markClosed()
}

// Done is closed once the stream stops accepting events.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

// LastActivity reports the timestamp of the most recent successful write.
func (c *SSEClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *SSEClient) markClosed() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
