package web

import (
	"net/http"
	"strconv"

	"storefinder/internal/domain/outbox"
)

const (
	defaultOutboxLimit = 50
	maxOutboxLimit     = 100
)

// outboxAvailable answers 503 when the outbox is not wired.
func (s *server) outboxAvailable(w http.ResponseWriter) bool {
	if s.Outbox == nil || s.Processor == nil {
		http.Error(w, "outbox is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleListOutbox lists outbox entries.
// Query: status=failed (default, exhausted entries only) | all | pending | retrying | done | abandoned; limit=1..100.
func (s *server) handleListOutbox(w http.ResponseWriter, r *http.Request) {
	if !s.outboxAvailable(w) {
		return
	}
	limit := defaultOutboxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxOutboxLimit {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		entries []outbox.Entry
		err     error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "", outbox.StatusFailed:
		entries, err = s.Outbox.ListFailed(r.Context(), limit)
	case "all":
		entries, err = s.Outbox.ListByStatus(r.Context(), "", limit)
	case outbox.StatusPending, outbox.StatusRetrying, outbox.StatusDone, outbox.StatusAbandoned:
		entries, err = s.Outbox.ListByStatus(r.Context(), status, limit)
	default:
		http.Error(w, "unknown status "+strconv.Quote(status), http.StatusBadRequest)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRetryOutbox delivers one entry now, ignoring backoff.
func (s *server) handleRetryOutbox(w http.ResponseWriter, r *http.Request) {
	if !s.outboxAvailable(w) {
		return
	}
	entry, err := s.Processor.ProcessSingle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleAbandonOutbox stops further delivery attempts for one entry.
func (s *server) handleAbandonOutbox(w http.ResponseWriter, r *http.Request) {
	if !s.outboxAvailable(w) {
		return
	}
	entry, err := s.Processor.AbandonEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
