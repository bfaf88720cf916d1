// Package livereload fans reload notifications out to connected browsers.
//
// A Hub is created once by the composition root and shared by reference: the
// development orchestrator publishes through it and the HTTP server
// subscribes browsers to it over Server-Sent Events or WebSocket. Listeners
// leave the hub when their transport closes or when a send to them fails,
// so dead connections never accumulate.
package livereload

import (
	"context"
	"errors"
	"sync"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
)

var (
	// ErrListenerClosed is returned by Send after Close.
	ErrListenerClosed = errors.New("listener closed")
	// ErrSlowListener is returned when a listener's queue is full.
	ErrSlowListener = errors.New("listener queue full")
)

// Listener is one subscribed browser connection.
type Listener interface {
	ID() string
	// Send queues payload for delivery. It must not block on the network.
	Send(ctx context.Context, payload []byte) error
	Close()
}

// Hub is the set of live listeners.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]Listener
	logger    logging.Logger
	errs      *kerrors.ErrorHandler
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("livereload")
	return &Hub{
		listeners: make(map[string]Listener),
		logger:    logger,
		errs:      kerrors.NewErrorHandler(logger),
	}
}

// Add registers l. A listener with the same ID replaces the previous one.
func (h *Hub) Add(l Listener) {
	h.mu.Lock()
	prev, ok := h.listeners[l.ID()]
	h.listeners[l.ID()] = l
	count := len(h.listeners)
	h.mu.Unlock()

	if ok && prev != l {
		prev.Close()
	}
	h.logger.Debug(context.Background(), "Client connected", "id", l.ID(), "total", count)
}

// Remove unregisters and closes the listener with id. Removing an unknown id
// is a no-op.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	l, ok := h.listeners[id]
	delete(h.listeners, id)
	count := len(h.listeners)
	h.mu.Unlock()

	if !ok {
		return
	}
	l.Close()
	h.logger.Debug(context.Background(), "Client disconnected", "id", id, "total", count)
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Broadcast sends payload to every listener registered when the call starts
// and returns the number of successful sends. Listeners that fail are
// removed. Delivery order is unspecified.
func (h *Hub) Broadcast(ctx context.Context, payload []byte) int {
	h.mu.RLock()
	snapshot := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		snapshot = append(snapshot, l)
	}
	h.mu.RUnlock()

	sent := 0
	for _, l := range snapshot {
		if err := l.Send(ctx, payload); err != nil {
			h.logger.Warn(ctx, err, "Dropping live-reload client", "id", l.ID())
			h.Remove(l.ID())
			continue
		}
		sent++
	}
	return sent
}

// Close removes every listener.
func (h *Hub) Close() {
	h.mu.Lock()
	listeners := h.listeners
	h.listeners = make(map[string]Listener)
	h.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
}

// queue is the buffered delivery channel shared by the transports.
type queue struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// queueSize bounds how many reloads may wait for a slow client.
const queueSize = 16

func newQueue() *queue {
	return &queue{
		ch:   make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

func (q *queue) push(ctx context.Context, payload []byte) error {
	select {
	case <-q.done:
		return ErrListenerClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case q.ch <- payload:
		return nil
	default:
		return ErrSlowListener
	}
}

func (q *queue) close() {
	q.once.Do(func() { close(q.done) })
}
