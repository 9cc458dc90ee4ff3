package qring

import "github.com/ringvault/ringvault/internal/models"

// MetricShape describes how an upload batch for a kind is turned into
// canonical records.
type MetricShape int

const (
	ShapePassThrough MetricShape = iota // stored as sent, primary time field normalized
	ShapeHeartRate                      // aliased bpm, {timestamp, hrId, bpm}
	ShapeSleepSegments                  // per-segment rows folded into day buckets
	ShapeActivityTotals                 // per-sample rows summed into day buckets
	ShapeVerbatim                       // stored exactly as sent
)

// HeartRateFields are the names the app has used for beats per minute, in
// lookup order.
var HeartRateFields = []string{"heartrate", "heartRate", "bpm", "hr"}

// timeFields is the primary time field normalized for pass-through kinds.
var timeFields = map[models.Kind]string{
	models.KindStress:        "date",
	models.KindHRV:           "date",
	models.KindTemperature:   "date",
	models.KindBloodOxygen:   "date",
	models.KindBloodPressure: "date",
	models.KindSedentary:     "date",
	models.KindExercise:      "startTime",
	models.KindSportPlus:     "startTime",
}

// DetectMetricShape returns the conversion shape for a kind.
func DetectMetricShape(kind models.Kind) MetricShape {
	switch kind {
	case models.KindHeartRate:
		return ShapeHeartRate
	case models.KindSleep:
		return ShapeSleepSegments
	case models.KindActivity:
		return ShapeActivityTotals
	}
	if _, ok := timeFields[kind]; ok {
		return ShapePassThrough
	}
	return ShapeVerbatim
}

// TimeField returns the normalized time field of a pass-through kind.
func TimeField(kind models.Kind) (string, bool) {
	f, ok := timeFields[kind]
	return f, ok
}
