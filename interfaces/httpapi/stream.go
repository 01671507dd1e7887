package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaysync/conductor/infrastructure/logging"
)

// upgrader adapts the teacher's contrib/pack-websocket dial-side pattern
// to the accept side: no origin restriction beyond the server's own CORS
// policy, since the stream is read-only broadcast fan-out, not a command
// channel.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// handleStream bridges one broadcast.Bus subscription onto a websocket
// connection for GET /api/v2/stream/:projectId, filtering to events for
// the requested project so one dashboard connection never sees another
// project's traffic.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().
			Add(logging.Component("httpapi")).
			Add(logging.ErrorField(err)).
			Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.ProjectID != projectID {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
