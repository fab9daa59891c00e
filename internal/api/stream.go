package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"romdock/internal/job"
)

// Stream handles GET /v1/jobs/{jobId}/stream - the pull transport.
// Events are written as SSE frames in publish order until a terminal
// event arrives or the client disconnects. An unknown or already
// consumed job produces a single error frame before the stream closes.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	st, err := h.reg.Consume(jobID)
	if err != nil {
		writeSSE(w, job.EventError, job.LogPayload{Message: err.Error()})
		flusher.Flush()
		return
	}
	defer st.Close()

	for {
		select {
		case ev, ok := <-st.Events():
			if !ok {
				return
			}
			if err := writeSSE(w, ev.Type, ev.Payload); err != nil {
				slog.Warn("SSE write failed", "jobId", jobID, "error", err)
				return
			}
			flusher.Flush()
			if ev.Type.Terminal() {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSE writes one server-sent event frame.
func writeSSE(w http.ResponseWriter, t job.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	if _, err := w.Write([]byte("event: " + string(t) + "\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
