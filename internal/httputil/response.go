package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error body of the form {"error": "..."}.
func WriteError(w http.ResponseWriter, status int, format string, args ...any) {
	_ = WriteJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
