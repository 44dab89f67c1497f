package handler

import "net/http"

// Healthz serves GET /healthz — a liveness check with no dependencies.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "mallardmetrics"})
}
