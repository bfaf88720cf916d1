package livereload

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oklog/ulid/v2"
)

type sseListener struct {
	id string
	*queue
}

func newSSEListener() *sseListener {
	return &sseListener{id: ulid.Make().String(), queue: newQueue()}
}

func (l *sseListener) ID() string { return l.id }

func (l *sseListener) Send(ctx context.Context, payload []byte) error {
	return l.push(ctx, payload)
}

func (l *sseListener) Close() { l.close() }

// ServeSSE streams reload notifications as Server-Sent Events. Each payload
// is written as a single `data:` event. The listener is removed when the
// client disconnects.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	l := newSSEListener()
	h.Add(l)
	defer h.Remove(l.ID())

	for {
		select {
		case payload := <-l.ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-l.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
