package reconcile

import (
	"strings"
	"time"

	"github.com/ringvault/ringvault/internal/models"
)

// Policy decides what happens when an incoming record's key already exists.
type Policy int

const (
	PreferNonZero   Policy = iota // keep existing unless it is zero and incoming is not
	LatestTimestamp               // later time field wins; on a tie prefer non-zero
	ReplaceByKey                  // incoming always replaces (day buckets)
	InsertIfAbsent                // first record for a key wins
	Append                        // no key; every record is appended
	Singleton                     // collection is replaced by the first incoming record
)

func (p Policy) String() string {
	switch p {
	case PreferNonZero:
		return "prefer_non_zero"
	case LatestTimestamp:
		return "latest_timestamp"
	case ReplaceByKey:
		return "replace"
	case InsertIfAbsent:
		return "insert_if_absent"
	case Append:
		return "append"
	case Singleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// Retention is the window kept for rolling time-series collections.
const Retention = 7 * 24 * time.Hour

// Spec parameterizes the engine for one collection.
type Spec struct {
	Kind   models.Kind
	Policy Policy

	// Key returns the dedup key; ok=false means the record has no usable key
	// and is skipped on ingest.
	Key func(models.Record) (key string, ok bool)
	// Value extracts the comparable measurement for PreferNonZero and
	// LatestTimestamp tie breaks.
	Value func(models.Record) float64

	// TimeField drives retention, the future check, and LatestTimestamp.
	TimeField string
	// FallbackTimeField is consulted when TimeField is absent.
	FallbackTimeField string
	// Retention of zero keeps full history.
	Retention time.Duration
	// RejectFuture drops records whose time lies beyond the future tolerance.
	RejectFuture bool
	// StampField, when set, receives the ingestion time on every new record.
	StampField string
}

// DefaultSpecs returns the reconciliation rules for every collection.
func DefaultSpecs() map[models.Kind]Spec {
	specs := []Spec{
		{
			Kind:         models.KindHeartRate,
			Policy:       PreferNonZero,
			Key:          fieldsKey("timestamp", "hrId"),
			Value:        numField("bpm"),
			TimeField:    "timestamp",
			Retention:    Retention,
			RejectFuture: true,
		},
		{
			Kind:   models.KindSleep,
			Policy: ReplaceByKey,
			Key:    fieldsKey("day"),
		},
		{
			Kind:   models.KindActivity,
			Policy: ReplaceByKey,
			Key:    fieldsKey("day"),
		},
		{
			Kind:         models.KindStress,
			Policy:       PreferNonZero,
			Key:          idOrValueKey("stressId", "stress"),
			Value:        numField("stress"),
			TimeField:    "date",
			Retention:    Retention,
			RejectFuture: true,
		},
		{
			Kind:         models.KindHRV,
			Policy:       PreferNonZero,
			Key:          idOrValueKey("hrvId", "hrv"),
			Value:        numField("hrv"),
			TimeField:    "date",
			Retention:    Retention,
			RejectFuture: true,
		},
		{
			Kind:         models.KindTemperature,
			Policy:       PreferNonZero,
			Key:          fieldsKey("date", "temperature"),
			Value:        numField("temperature"),
			TimeField:    "date",
			Retention:    Retention,
			RejectFuture: true,
		},
		{
			Kind:         models.KindBloodOxygen,
			Policy:       LatestTimestamp,
			Key:          nonEmptyKey("date"),
			Value:        BloodOxygenValue,
			TimeField:    "date",
			Retention:    Retention,
			RejectFuture: true,
		},
		{
			Kind:      models.KindExercise,
			Policy:    InsertIfAbsent,
			Key:       nonEmptyKey("startTime"),
			TimeField: "startTime",
			Retention: Retention,
		},
		{
			Kind:      models.KindSportPlus,
			Policy:    InsertIfAbsent,
			Key:       nonEmptyKey("startTime"),
			TimeField: "startTime",
			Retention: Retention,
		},
		{
			Kind:      models.KindSedentary,
			Policy:    InsertIfAbsent,
			Key:       fieldsKey("date", "endTime"),
			TimeField: "date",
			Retention: Retention,
		},
		{
			Kind:              models.KindManualMeasurements,
			Policy:            Append,
			TimeField:         "received_at",
			FallbackTimeField: "timestamp",
			Retention:         Retention,
			StampField:        "received_at",
		},
		{
			Kind:      models.KindBloodPressure,
			Policy:    Append,
			TimeField: "date",
		},
		{Kind: models.KindUserInfo, Policy: Singleton},
		{Kind: models.KindTargetInfo, Policy: Singleton},
	}

	out := make(map[models.Kind]Spec, len(specs))
	for _, s := range specs {
		out[s.Kind] = s
	}
	return out
}

// BloodOxygenValue reads the saturation under any of the names the app uses.
func BloodOxygenValue(r models.Record) float64 {
	v, _ := r.FirstTruthy("bloodOxygen", "blood_oxygen", "soa2")
	return models.ToFloat(v)
}

func numField(field string) func(models.Record) float64 {
	return func(r models.Record) float64 { return r.Num(field) }
}

func joinKey(parts ...any) string {
	rendered := make([]string, len(parts))
	for i, p := range parts {
		rendered[i] = models.KeyPart(p)
	}
	return strings.Join(rendered, "\x1f")
}

func fieldsKey(fields ...string) func(models.Record) (string, bool) {
	return func(r models.Record) (string, bool) {
		parts := make([]any, len(fields))
		for i, f := range fields {
			parts[i] = r[f]
		}
		return joinKey(parts...), true
	}
}

// idOrValueKey keys on (date, id) when the id is present, else (date, value).
func idOrValueKey(idField, valueField string) func(models.Record) (string, bool) {
	return func(r models.Record) (string, bool) {
		if id, ok := r[idField]; ok && id != nil {
			return joinKey(r["date"], id), true
		}
		return joinKey(r["date"], r[valueField]), true
	}
}

func nonEmptyKey(field string) func(models.Record) (string, bool) {
	return func(r models.Record) (string, bool) {
		v, ok := r[field]
		if !ok || !models.Truthy(v) {
			return "", false
		}
		return joinKey(v), true
	}
}
