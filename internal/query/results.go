package query

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ringvault/ringvault/internal/models"
)

// Envelope carries the fields every query response shares.
type Envelope struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

// SeriesResult is a filtered, sorted slice of one collection.
type SeriesResult struct {
	Envelope
	Data       []models.Record    `json:"data"`
	Count      int                `json:"count"`
	ValidCount *int               `json:"valid_count,omitempty"`
	Stats      map[string]float64 `json:"stats,omitempty"`
	Note       string             `json:"note,omitempty"`
}

// ManualResult lists manual measurements with per-type counts.
type ManualResult struct {
	Envelope
	Data          []models.Record `json:"data"`
	Count         int             `json:"count"`
	ManualCount   int             `json:"manual_count"`
	RealtimeCount int             `json:"realtime_count"`
	OneKeyCount   int             `json:"one_key_count"`
}

// ProfileResult holds a singleton record, or null.
type ProfileResult struct {
	Envelope
	Data models.Record `json:"data"`
}

// Stats summarizes collection sizes. It serializes as a flat object with
// one "<kind>_count" field per kind plus last_update.
type Stats struct {
	Counts     map[models.Kind]int
	LastUpdate map[models.Kind]string
}

// StatsResult wraps Stats the way the stats endpoint returns it.
type StatsResult struct {
	Success bool  `json:"success"`
	Data    Stats `json:"data"`
}

const countSuffix = "_count"

func (s Stats) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Counts)+2)
	for _, k := range models.AllKinds() {
		out[string(k)+countSuffix] = s.Counts[k]
	}
	// Readiness is not reported by the ring; dashboards still expect the field.
	out["readiness"+countSuffix] = 0

	lu := make(map[string]string, len(s.LastUpdate))
	for k, v := range s.LastUpdate {
		lu[string(k)] = v
	}
	out["last_update"] = lu
	return json.Marshal(out)
}

func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding stats: %w", err)
	}
	s.Counts = make(map[models.Kind]int)
	s.LastUpdate = make(map[models.Kind]string)

	for key, val := range raw {
		if key == "last_update" {
			var lu map[string]string
			if err := json.Unmarshal(val, &lu); err != nil {
				return fmt.Errorf("decoding last_update: %w", err)
			}
			for k, v := range lu {
				s.LastUpdate[models.Kind(k)] = v
			}
			continue
		}
		kind := models.Kind(strings.TrimSuffix(key, countSuffix))
		if !strings.HasSuffix(key, countSuffix) || !kind.Valid() {
			continue
		}
		var n int
		if err := json.Unmarshal(val, &n); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		s.Counts[kind] = n
	}
	return nil
}

// Total returns the number of records across all kinds.
func (s Stats) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}
