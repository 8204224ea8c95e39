package surface

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Server fans overlay snapshots out to websocket subscribers. Every new
// subscriber immediately receives the current snapshot; afterwards each
// [Server.Publish] pushes the next revision to all of them.
type Server struct {
	transition time.Duration

	mu       sync.Mutex
	snapshot Snapshot
	subs     map[chan []byte]struct{}
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithTransition sets the transition duration reported to overlay clients.
func WithTransition(d time.Duration) ServerOption {
	return func(s *Server) {
		if d >= 0 {
			s.transition = d
		}
	}
}

// NewServer returns a Server with no subscribers and an empty snapshot.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		transition: 400 * time.Millisecond,
		subs:       make(map[chan []byte]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot = Snapshot{TransitionMS: s.transition.Milliseconds()}
	return s
}

// Publish replaces the overlay state with slots under the next revision and
// pushes it to every subscriber. Slow subscribers are dropped rather than
// allowed to stall the stage.
func (s *Server) Publish(slots []Slot) {
	s.mu.Lock()
	s.snapshot = Snapshot{
		Revision:     s.snapshot.Revision + 1,
		TransitionMS: s.transition.Milliseconds(),
		Slots:        slots,
	}
	data, err := json.Marshal(s.snapshot)
	if err != nil {
		s.mu.Unlock()
		slog.Error("surface: marshal snapshot", "err", err)
		return
	}
	for ch := range s.subs {
		select {
		case ch <- data:
		default:
			delete(s.subs, ch)
			close(ch)
		}
	}
	s.mu.Unlock()
}

// Snapshot returns the most recently published snapshot.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// ServeHTTP implements http.Handler for the overlay websocket endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Overlays load from OBS browser sources and file:// origins.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("surface: websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx := r.Context()

	// Register before the initial send so no revision is missed in between.
	ch := make(chan []byte, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	initial, err := json.Marshal(s.snapshot)
	s.mu.Unlock()
	defer s.unsubscribe(ch)

	if err != nil {
		slog.Error("surface: marshal snapshot", "err", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, initial); err != nil {
		return
	}

	// Discard inbound frames; the protocol is one-directional. Read errors
	// signal the client is gone.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				// Dropped as a slow subscriber.
				conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-gone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// unsubscribe removes ch unless Publish already dropped it.
func (s *Server) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

// Shutdown drops all subscribers. In-flight handlers return once their
// clients observe the close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	return nil
}
