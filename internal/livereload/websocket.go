package livereload

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

type wsListener struct {
	id   string
	conn *websocket.Conn
	*queue
}

func (l *wsListener) ID() string { return l.id }

func (l *wsListener) Send(ctx context.Context, payload []byte) error {
	return l.push(ctx, payload)
}

func (l *wsListener) Close() {
	l.close()
	l.conn.Close(websocket.StatusNormalClosure, "")
}

// CheckOrigin validates the Origin header of a WebSocket handshake against
// allowed host:port pairs. Requests without an origin are rejected.
func CheckOrigin(r *http.Request, allowed []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return kerrors.ErrInvalidOrigin("(none)")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return kerrors.ErrInvalidOrigin(origin)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return kerrors.ErrInvalidOrigin(origin)
	}

	for _, host := range allowed {
		if originURL.Host == host {
			return nil
		}
	}
	return kerrors.ErrInvalidOrigin(origin)
}

// ServeWebSocket returns a handler that subscribes WebSocket clients. Each
// payload is sent as a text message. allowed lists the host:port origins
// permitted to connect.
func (h *Hub) ServeWebSocket(allowed []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := CheckOrigin(r, allowed); err != nil {
			h.errs.Handle(r.Context(), err)
			http.Error(w, "Origin not allowed", http.StatusForbidden)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: allowed,
		})
		if err != nil {
			h.logger.Error(r.Context(), err, "WebSocket upgrade error")
			return
		}
		conn.SetReadLimit(maxMessageSize)

		l := &wsListener{id: ulid.Make().String(), conn: conn, queue: newQueue()}
		h.Add(l)
		defer h.Remove(l.ID())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go l.writePump(ctx)
		l.readPump(ctx)
	}
}

// readPump blocks until the peer goes away. Incoming messages are ignored.
func (l *wsListener) readPump(ctx context.Context) {
	for {
		if _, _, err := l.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (l *wsListener) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-l.ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := l.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				l.Close()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := l.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				l.Close()
				return
			}
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
