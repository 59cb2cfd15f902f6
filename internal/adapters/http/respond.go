package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"storefinder/internal/domain/outbox"
	"storefinder/internal/domain/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// internalError logs the real error and returns a generic 500 to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// writeError maps domain errors to status codes; anything unrecognised is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, outbox.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrEmailTaken), errors.Is(err, outbox.ErrTerminal), errors.Is(err, outbox.ErrNotFailed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		internalError(w, err)
	}
}

// readBody reads a capped request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return body, nil
}

// strictDecode decodes JSON, rejecting unknown fields and trailing data.
func strictDecode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", store.ErrValidation)
	}
	return nil
}

// pathUUID returns the canonical form of a UUID path segment.
func pathUUID(r *http.Request, name string) (string, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return "", fmt.Errorf("%w: %s must be a UUID", store.ErrValidation, name)
	}
	return id.String(), nil
}
