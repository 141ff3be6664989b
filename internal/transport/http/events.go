package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"paysession-be/internal/logger"
	"paysession-be/internal/payment"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Events streams watcher events for one order as server-sent events. The
// stream ends when the client goes away or the watcher reports an error.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "events"),
		zap.String("order_id", orderID),
	)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorPayload{Error: "streaming unsupported", Code: "internal"})
		return
	}

	sub, err := h.deps.Watcher.Open(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, payment.Event{Kind: payment.EventStatus, Status: sub.Status()}); err != nil {
		return
	}
	flusher.Flush()

	for ev := range sub.Events() {
		if err := writeEvent(w, ev); err != nil {
			log.Debug("event stream closed by client", zap.Error(err))
			return
		}
		flusher.Flush()
	}
	log.Debug("event stream finished", zap.Stringer("state", sub.Status().State))
}

func writeEvent(w http.ResponseWriter, ev payment.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
