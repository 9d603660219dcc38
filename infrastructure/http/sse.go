package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"pickflow/models"
)

// eventsHandler streams order snapshots as server-sent events. The first
// event is the current set; every subsequent event is the full set after a
// write. Clients replace their projection wholesale on each event.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Store callbacks run on the writer's goroutine; a buffered channel
	// decouples them from this response. A slow client that falls more
	// than a snapshot behind only ever skips to newer state, never blocks
	// the store.
	snapshots := make(chan []models.Order, 1)
	cancel := s.Store.Subscribe(func(orders []models.Order) {
		for {
			select {
			case snapshots <- orders:
				return
			default:
				select {
				case <-snapshots:
				default:
				}
			}
		}
	})
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case orders := <-snapshots:
			payload, err := json.Marshal(orders)
			if err != nil {
				slog.Error("marshal sse snapshot failed", slog.Any("err", err))
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
