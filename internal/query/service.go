// Package query serves filtered, sorted views of the store.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/reconcile"
)

// Defaults applied when a caller omits or garbles a window parameter.
const (
	DefaultHours       = 168
	DefaultManualHours = 24
	DefaultDays        = 30
)

// Reader is the read side of the store.
type Reader interface {
	Collection(kind models.Kind) []models.Record
	Counts() map[models.Kind]int
	LastUpdate() map[models.Kind]string
}

// Service answers dashboard queries.
type Service struct {
	store Reader
	norm  *clock.Normalizer
	specs map[models.Kind]reconcile.Spec
}

func NewService(store Reader, norm *clock.Normalizer) *Service {
	return &Service{store: store, norm: norm, specs: reconcile.DefaultSpecs()}
}

// IsSeries reports whether kind is served by hour windows.
func IsSeries(kind models.Kind) bool {
	switch kind {
	case models.KindHeartRate, models.KindStress, models.KindHRV, models.KindBloodOxygen,
		models.KindTemperature, models.KindExercise, models.KindSportPlus,
		models.KindSedentary, models.KindBloodPressure:
		return true
	}
	return false
}

// IsDaily reports whether kind is served by day windows.
func IsDaily(kind models.Kind) bool {
	return kind.DayBucketed()
}

// Now is the service clock's current time in the reference zone.
func (s *Service) Now() time.Time {
	return s.norm.Now()
}

func (s *Service) envelope() Envelope {
	return Envelope{Success: true, Timestamp: clock.Format(s.norm.Now())}
}

// HeartRate returns samples in the last hours, oldest first. Zero readings
// are included unless includeZero is false; valid_count counts bpm > 0.
func (s *Service) HeartRate(ctx context.Context, hours int, includeZero bool) (*SeriesResult, error) {
	res, err := s.Series(ctx, models.KindHeartRate, hours)
	if err != nil {
		return nil, err
	}
	if !includeZero {
		filtered := res.Data[:0]
		for _, rec := range res.Data {
			if rec.Num("bpm") > 0 {
				filtered = append(filtered, rec)
			}
		}
		res.Data = filtered
		res.Count = len(filtered)
	}
	valid := 0
	for _, rec := range res.Data {
		if rec.Num("bpm") > 0 {
			valid++
		}
	}
	res.ValidCount = &valid
	res.Stats = nil
	return res, nil
}

// Series returns records of kind whose time lies in [now-hours, now],
// oldest first, with derived statistics.
func (s *Service) Series(_ context.Context, kind models.Kind, hours int) (*SeriesResult, error) {
	if !IsSeries(kind) {
		return nil, fmt.Errorf("%w: %s is not a time series", models.ErrUnknownKind, kind)
	}
	field := s.specs[kind].TimeField
	now := s.norm.Now()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	type timed struct {
		rec models.Record
		at  time.Time
	}
	var rows []timed
	for _, rec := range s.store.Collection(kind) {
		at := s.norm.ParseValue(rec[field])
		if at.Before(cutoff) || at.After(now) {
			continue
		}
		rows = append(rows, timed{rec: rec, at: at})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })

	data := make([]models.Record, len(rows))
	for i, r := range rows {
		data[i] = r.rec
	}
	return &SeriesResult{
		Envelope: s.envelope(),
		Data:     data,
		Count:    len(data),
		Stats:    seriesStats(kind, data),
	}, nil
}

// Days returns day-bucketed records of kind from the last days calendar
// days, newest first.
func (s *Service) Days(_ context.Context, kind models.Kind, days int) (*SeriesResult, error) {
	if !IsDaily(kind) {
		return nil, fmt.Errorf("%w: %s is not day-bucketed", models.ErrUnknownKind, kind)
	}
	now := s.norm.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, clock.Reference)
	cutoff := today.AddDate(0, 0, -days)

	var data []models.Record
	for _, rec := range s.store.Collection(kind) {
		day, err := time.ParseInLocation(clock.DayLayout, rec.Str("day"), clock.Reference)
		if err != nil || day.Before(cutoff) {
			continue
		}
		data = append(data, rec)
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].Str("day") > data[j].Str("day") })
	if data == nil {
		data = []models.Record{}
	}
	return &SeriesResult{
		Envelope: s.envelope(),
		Data:     data,
		Count:    len(data),
		Stats:    seriesStats(kind, data),
	}, nil
}

// Readiness is always empty: the ring reports no readiness score.
func (s *Service) Readiness(_ context.Context) (*SeriesResult, error) {
	return &SeriesResult{
		Envelope: s.envelope(),
		Data:     []models.Record{},
		Note:     "Qring does not provide readiness data directly",
	}, nil
}

// ManualMeasurements returns measurements received in the last hours, newest
// first, optionally restricted to one measurementType.
func (s *Service) ManualMeasurements(_ context.Context, hours int, measurementType string) (*ManualResult, error) {
	spec := s.specs[models.KindManualMeasurements]
	cutoff := s.norm.Now().Add(-time.Duration(hours) * time.Hour)

	type timed struct {
		rec models.Record
		at  time.Time
	}
	var rows []timed
	for _, rec := range s.store.Collection(models.KindManualMeasurements) {
		v, ok := rec[spec.TimeField]
		if !ok || v == nil {
			v = rec[spec.FallbackTimeField]
		}
		at := s.norm.ParseValue(v)
		if at.Before(cutoff) {
			continue
		}
		if measurementType != "" && rec.Str("measurementType") != measurementType {
			continue
		}
		rows = append(rows, timed{rec: rec, at: at})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.After(rows[j].at) })

	res := &ManualResult{Envelope: s.envelope(), Data: make([]models.Record, len(rows))}
	for i, r := range rows {
		res.Data[i] = r.rec
		switch r.rec.Str("measurementType") {
		case "manual":
			res.ManualCount++
		case "realtime":
			res.RealtimeCount++
		case "one_key":
			res.OneKeyCount++
		}
	}
	res.Count = len(res.Data)
	return res, nil
}

// Profile returns the singleton record of kind, or nil data when unset.
func (s *Service) Profile(_ context.Context, kind models.Kind) (*ProfileResult, error) {
	if !kind.Singleton() {
		return nil, fmt.Errorf("%w: %s is not a profile", models.ErrUnknownKind, kind)
	}
	res := &ProfileResult{Envelope: s.envelope()}
	if recs := s.store.Collection(kind); len(recs) > 0 {
		res.Data = recs[0]
	}
	return res, nil
}

// Stats returns per-kind record counts and last_update.
func (s *Service) Stats(_ context.Context) (*StatsResult, error) {
	return &StatsResult{
		Success: true,
		Data: Stats{
			Counts:     s.store.Counts(),
			LastUpdate: s.store.LastUpdate(),
		},
	}, nil
}
