package handler

import (
	"encoding/json"
	"net/http"

	"github.com/tomtom215/mallardmetrics/mmerr"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders err as a JSON {"error": message} body, picking the
// HTTP status code from an *mmerr.Error when present (500 otherwise).
func writeError(w http.ResponseWriter, err error) {
	var merr *mmerr.Error
	if mmerr.As(err, &merr) {
		writeJSON(w, merr.StatusCode(), map[string]string{"error": merr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
