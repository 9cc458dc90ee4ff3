package storage

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/ringvault/ringvault/internal/models"
)

const lastUpdateKey = "last_update"

// Snapshot is the full persisted state: one array per kind plus the
// last_update mapping, serialized as a flat JSON object.
type Snapshot struct {
	Collections map[models.Kind][]models.Record
	LastUpdate  map[models.Kind]string
}

// NewSnapshot returns a snapshot with every kind present and empty.
func NewSnapshot() Snapshot {
	s := Snapshot{
		Collections: make(map[models.Kind][]models.Record),
		LastUpdate:  make(map[models.Kind]string),
	}
	for _, k := range models.AllKinds() {
		s.Collections[k] = []models.Record{}
	}
	return s
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Collections)+1)
	for _, k := range models.AllKinds() {
		recs := s.Collections[k]
		if recs == nil {
			recs = []models.Record{}
		}
		out[string(k)] = recs
	}
	lu := make(map[string]string, len(s.LastUpdate))
	for k, v := range s.LastUpdate {
		lu[string(k)] = v
	}
	out[lastUpdateKey] = lu
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	*s = NewSnapshot()
	for key, val := range raw {
		if key == lastUpdateKey {
			if m, ok := val.(map[string]any); ok {
				for k, v := range m {
					if ts, ok := v.(string); ok {
						s.LastUpdate[models.Kind(k)] = ts
					}
				}
			}
			continue
		}
		kind := models.Kind(key)
		if !kind.Valid() {
			continue
		}
		items, ok := val.([]any)
		if !ok {
			continue
		}
		recs := make([]models.Record, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				recs = append(recs, models.Record(m))
			}
		}
		s.Collections[kind] = recs
	}
	return nil
}

// Counts returns the number of records per kind.
func (s Snapshot) Counts() map[models.Kind]int {
	out := make(map[models.Kind]int, len(s.Collections))
	for _, k := range models.AllKinds() {
		out[k] = len(s.Collections[k])
	}
	return out
}
