package handlers

import "net/http"

// Health reports liveness and the selected stack.
func Health(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "env": env})
	}
}
