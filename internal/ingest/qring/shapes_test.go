package qring

import (
	"testing"

	"github.com/ringvault/ringvault/internal/models"
)

// TestDetectMetricShapeConverted verifies the three converted kinds.
func TestDetectMetricShapeConverted(t *testing.T) {
	cases := map[models.Kind]MetricShape{
		models.KindHeartRate: ShapeHeartRate,
		models.KindSleep:     ShapeSleepSegments,
		models.KindActivity:  ShapeActivityTotals,
	}
	for kind, want := range cases {
		if got := DetectMetricShape(kind); got != want {
			t.Errorf("%s shape = %d, want %d", kind, got, want)
		}
	}
}

// TestDetectMetricShapePassThrough verifies time-keyed kinds keep their
// records but get a normalized time field.
func TestDetectMetricShapePassThrough(t *testing.T) {
	for _, kind := range []models.Kind{models.KindStress, models.KindHRV, models.KindExercise, models.KindSedentary} {
		if got := DetectMetricShape(kind); got != ShapePassThrough {
			t.Errorf("%s shape = %d, want ShapePassThrough", kind, got)
		}
		if _, ok := TimeField(kind); !ok {
			t.Errorf("%s: expected a time field", kind)
		}
	}
}

// TestDetectMetricShapeVerbatim verifies profile and manual kinds are stored as sent.
func TestDetectMetricShapeVerbatim(t *testing.T) {
	for _, kind := range []models.Kind{models.KindUserInfo, models.KindTargetInfo, models.KindManualMeasurements} {
		if got := DetectMetricShape(kind); got != ShapeVerbatim {
			t.Errorf("%s shape = %d, want ShapeVerbatim", kind, got)
		}
	}
}
