package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteTimeout bounds a single frame write so one stuck client
// cannot hold the writer loop forever.
const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API already sends permissive CORS headers; browsers connect
	// from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the server-to-client frame.
type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsCommand is the client-to-server frame. Only confirm is understood.
type wsCommand struct {
	Type   string `json:"type"`
	Result bool   `json:"result"`
}

// WS handles GET /v1/jobs/{jobId}/ws - the push transport.
// The connection relays job events as they are published and accepts
// confirmation replies from the client. Many connections may attach to
// the same job.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	pc, err := h.reg.Attach(jobID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.reg.Detach(pc)
		slog.Warn("WebSocket upgrade failed", "jobId", jobID, "error", err)
		return
	}
	defer ws.Close()
	defer h.reg.Detach(pc)

	// Reader: confirmation replies and disconnect detection.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var cmd wsCommand
			if err := ws.ReadJSON(&cmd); err != nil {
				return
			}
			if cmd.Type == "confirm" {
				h.reg.Resolve(jobID, cmd.Result)
			}
		}
	}()

	for {
		select {
		case ev, ok := <-pc.Events():
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteJSON(wsEvent{Type: string(ev.Type), Data: ev.Payload}); err != nil {
				slog.Warn("WebSocket write failed", "jobId", jobID, "error", err)
				return
			}
			if ev.Type.Terminal() {
				ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Type)))
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
