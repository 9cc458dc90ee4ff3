package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIngestLogSize is how many batches the ingest log remembers.
const DefaultIngestLogSize = 100

// IngestLog represents a single upload batch's outcome.
type IngestLog struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Received     int       `json:"received"`
	New          int       `json:"new"`
	Updated      int       `json:"updated"`
	Duplicate    int       `json:"duplicate"`
	Future       int       `json:"future"`
	Skipped      int       `json:"skipped"`
	DurationMs   int       `json:"duration_ms"`
	ErrorMessage *string   `json:"error_message"`
}

// IngestLogs is a bounded, in-memory history of upload batches.
type IngestLogs struct {
	mu      sync.Mutex
	entries []IngestLog
	max     int
}

func NewIngestLogs(max int) *IngestLogs {
	if max <= 0 {
		max = DefaultIngestLogSize
	}
	return &IngestLogs{max: max}
}

// Insert records an entry, assigning an ID and creation time when unset,
// and returns the ID.
func (l *IngestLogs) Insert(entry IngestLog) string {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	return entry.ID
}

// Query returns up to limit entries, newest first. An empty kind matches all.
func (l *IngestLogs) Query(kind string, limit int) []IngestLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = len(l.entries)
	}
	out := make([]IngestLog, 0, min(limit, len(l.entries)))
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && l.entries[i].Kind != kind {
			continue
		}
		out = append(out, l.entries[i])
	}
	return out
}
