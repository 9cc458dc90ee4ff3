package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ringvault/ringvault/internal/ingest"
	"github.com/ringvault/ringvault/internal/storage"
)

func (s *Server) handleIngestLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs := s.logs.Query(r.URL.Query().Get("kind"), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}

// logIngest records a batch's outcome in the ingest log.
func (s *Server) logIngest(uploadType string, res *ingest.Result, ingestErr error, elapsed time.Duration) {
	entry := storage.IngestLog{
		Kind:       uploadType,
		Status:     "success",
		DurationMs: int(elapsed.Milliseconds()),
	}
	if res != nil {
		entry.Kind = res.Kind
		entry.Received = res.Received
		entry.New = res.New
		entry.Updated = res.Updated
		entry.Duplicate = res.Duplicate
		entry.Future = res.Future
		entry.Skipped = res.Skipped
	}
	if ingestErr != nil {
		entry.Status = "error"
		msg := ingestErr.Error()
		entry.ErrorMessage = &msg
	}
	id := s.logs.Insert(entry)
	s.log.Debug().Str("batch_id", id).Str("kind", entry.Kind).Str("status", entry.Status).Msg("ingest logged")
}
