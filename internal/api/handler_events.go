package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procflow/retryd/internal/core"
)

// EventHandler streams retry events over Server-Sent Events.
type EventHandler struct {
	subscriber core.EventSubscriber
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(subscriber core.EventSubscriber) *EventHandler {
	return &EventHandler{subscriber: subscriber}
}

// StreamAll handles GET /v1/events
func (h *EventHandler) StreamAll(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe, err := h.subscriber.SubscribeAll()
	if err != nil {
		HandleError(w, err)
		return
	}
	defer unsubscribe()
	h.stream(w, r, events)
}

// StreamJob handles GET /v1/jobs/{id}/events
func (h *EventHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, unsubscribe, err := h.subscriber.SubscribeJob(id)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer unsubscribe()
	h.stream(w, r, events)
}

func (h *EventHandler) stream(w http.ResponseWriter, r *http.Request, events <-chan *core.RetryEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError,
			core.NewInternalError("streaming unsupported by this connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
			flusher.Flush()
		}
	}
}
