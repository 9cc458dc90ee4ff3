package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/ingest"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
)

// maxUploadBytes bounds one upload body. A day of minute-level samples is
// well under this.
const maxUploadBytes = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		s.log.Warn().Err(err).Str("source", ClientSource(r)).Msg("upload body unreadable")
		writeUploadError(w, http.StatusBadRequest, "No data provided")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil || len(fields) == 0 {
		s.log.Warn().Str("source", ClientSource(r)).Int("bytes", len(body)).Msg("upload without data")
		writeUploadError(w, http.StatusBadRequest, "No data provided")
		return
	}

	var payload models.UploadPayload
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &payload.Type); err != nil {
			writeUploadError(w, http.StatusBadRequest, "Unsupported data type: "+string(raw))
			return
		}
	}
	if payload.Type == "" {
		writeUploadError(w, http.StatusBadRequest, "Missing data type")
		return
	}
	payload.Data = []byte(fields["data"])

	result, err := s.ingest.Ingest(r.Context(), &payload)
	s.logIngest(payload.Type, result, err, time.Since(start))

	switch {
	case errors.Is(err, models.ErrUnknownKind):
		writeUploadError(w, http.StatusBadRequest, "Unsupported data type: "+payload.Type)
		return
	case errors.Is(err, models.ErrMalformedData):
		writeUploadError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error().Err(err).Str("type", payload.Type).Msg("ingest error")
		writeUploadError(w, http.StatusInternalServerError, s.errorText(err))
		return
	}

	s.cache.Clear()
	s.recordIngest(result)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   result.Message,
		"timestamp": clock.Format(s.query.Now()),
	})
}

func (s *Server) handleHeartRate(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", query.DefaultHours)
	includeZero := strings.ToLower(stringParam(r, "include_zero", "true")) == "true"

	res, err := s.query.HeartRate(r.Context(), hours, includeZero)
	s.respond(w, res, err)
}

func (s *Server) handleSeries(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.query.Series(r.Context(), kind, intParam(r, "hours", query.DefaultHours))
		s.respond(w, res, err)
	}
}

func (s *Server) handleDays(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.query.Days(r.Context(), kind, intParam(r, "days", query.DefaultDays))
		s.respond(w, res, err)
	}
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	res, err := s.query.Readiness(r.Context())
	s.respond(w, res, err)
}

func (s *Server) handleManualMeasurements(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", query.DefaultManualHours)
	res, err := s.query.ManualMeasurements(r.Context(), hours, r.URL.Query().Get("type"))
	s.respond(w, res, err)
}

func (s *Server) handleProfile(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.query.Profile(r.Context(), kind)
		s.respond(w, res, err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.query.Stats(r.Context())
	s.respond(w, res, err)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Qring API Server",
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":              "/api/health",
			"upload":              "/api/qring/upload",
			"stats":               "/api/stats",
			"heartrate":           "/api/heartrate",
			"hrv":                 "/api/hrv",
			"stress":              "/api/stress",
			"blood_oxygen":        "/api/blood-oxygen",
			"temperature":         "/api/temperature",
			"exercise":            "/api/exercise",
			"sport_plus":          "/api/sport-plus",
			"sedentary":           "/api/sedentary",
			"blood_pressure":      "/api/blood-pressure",
			"activity":            "/api/daily-activity",
			"readiness":           "/api/daily-readiness",
			"sleep":               "/api/sleep",
			"manual_measurements": "/api/manual-measurements",
			"user_info":           "/api/user-info",
			"target_info":         "/api/target-info",
			"ingest_logs":         "/api/ingest-logs",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	exists := false
	if s.opts.DataFile != "" {
		if _, err := os.Stat(s.opts.DataFile); err == nil {
			exists = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"timestamp":        clock.Format(s.query.Now()),
		"version":          Version,
		"data_file":        s.opts.DataFile,
		"data_file_exists": exists,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "Not found",
		"message": "The requested resource was not found",
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error":   "Method not allowed",
		"message": "The method is not allowed for the requested URL",
	})
}

// respond writes a query result, or a 500 shaped by the environment.
func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		s.log.Error().Err(err).Msg("query error")
		if s.opts.Production {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) errorText(err error) string {
	if s.opts.Production {
		return "Internal server error"
	}
	return err.Error()
}

// recordIngest feeds a successful batch into the metrics.
func (s *Server) recordIngest(res *ingest.Result) {
	s.metrics.AddIngested(res.Kind, "new", res.New)
	s.metrics.AddIngested(res.Kind, "updated", res.Updated)
	s.metrics.AddIngested(res.Kind, "duplicate", res.Duplicate)
	s.metrics.AddIngested(res.Kind, "future", res.Future)
	s.metrics.AddIngested(res.Kind, "skipped", res.Skipped)
	s.metrics.AddIngested(res.Kind, "pruned", res.Pruned)
	s.metrics.SetRecordsTotal(res.Kind, res.Total)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeUploadError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// intParam parses an integer query parameter, falling back to def when the
// value is absent or not an integer.
func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func stringParam(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}
