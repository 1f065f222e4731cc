package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into dst and returns the raw bytes for hashing.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("missing request body")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, err
	}
	return raw, nil
}

// decodeOrReject writes a 422 and returns false when the body is unusable.
func decodeOrReject(w http.ResponseWriter, r *http.Request, dst any) ([]byte, bool) {
	raw, err := readJSON(w, r, dst)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", map[string]any{"body": err.Error()})
		return nil, false
	}
	return raw, true
}
