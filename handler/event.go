package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tomtom215/mallardmetrics/ingest"
	"github.com/tomtom215/mallardmetrics/mmerr"
)

// EventHandler serves POST /api/event, the sole ingestion endpoint.
type EventHandler struct {
	orchestrator *ingest.Orchestrator
	logger       zerolog.Logger
}

// NewEventHandler ties an EventHandler to the ingestion orchestrator.
func NewEventHandler(orchestrator *ingest.Orchestrator, logger zerolog.Logger) *EventHandler {
	return &EventHandler{orchestrator: orchestrator, logger: logger.With().Str("handler", "event").Logger()}
}

// Track decodes the request body and runs it through the ingestion
// pipeline, per spec §4.11 / §6.
func (h *EventHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mmerr.New(mmerr.ClientInvalid, "malformed request body"))
		return
	}

	origin := r.Header.Get("Origin")
	userAgent := r.Header.Get("User-Agent")
	remoteAddr := ingest.ExtractRemoteAddr(r)

	if err := h.orchestrator.Accept(req, remoteAddr, origin, userAgent); err != nil {
		var merr *mmerr.Error
		if mmerr.As(err, &merr) && merr.Kind == mmerr.RateLimited {
			w.Header().Set("Retry-After", "1")
		}
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
