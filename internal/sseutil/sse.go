package sseutil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SetHeaders sets the standard SSE headers
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// Flush flushes the response writer if it supports it
func Flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// WriteEvent writes one named SSE event with data encoded as JSON and
// flushes it. An empty name writes an unnamed event.
func WriteEvent(w http.ResponseWriter, name string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	Flush(w)
	return nil
}

// WriteComment writes an SSE comment line, used as a keepalive.
func WriteComment(w http.ResponseWriter, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	Flush(w)
	return nil
}
