package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxJSONBody bounds JSON request bodies. The only large payloads this
// API accepts are multipart image uploads, which bypass this path.
const maxJSONBody = 1 << 20

// jsonResponse writes data as a JSON response with the given status.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

// jsonError writes an error message as {"error": ...}.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonMessage writes a confirmation as {"message": ...}.
func jsonMessage(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"message": message})
}

// decodeJSON decodes a size-limited JSON request body into target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody)).Decode(target)
}
