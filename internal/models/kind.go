package models

import (
	"fmt"
	"strings"
)

// Kind names a metric collection in the store.
type Kind string

const (
	KindHeartRate          Kind = "heartrate"
	KindSleep              Kind = "sleep"
	KindActivity           Kind = "activity"
	KindBloodPressure      Kind = "blood_pressure"
	KindBloodOxygen        Kind = "blood_oxygen"
	KindTemperature        Kind = "temperature"
	KindStress             Kind = "stress"
	KindHRV                Kind = "hrv"
	KindExercise           Kind = "exercise"
	KindSportPlus          Kind = "sport_plus"
	KindSedentary          Kind = "sedentary"
	KindUserInfo           Kind = "user_info"
	KindTargetInfo         Kind = "target_info"
	KindManualMeasurements Kind = "manual_measurements"
)

// ErrUnknownKind is returned for upload types that map to no collection.
var ErrUnknownKind = fmt.Errorf("unknown data type")

// allKinds is ordered the way collections appear in snapshots and stats.
var allKinds = []Kind{
	KindHeartRate,
	KindSleep,
	KindActivity,
	KindBloodPressure,
	KindBloodOxygen,
	KindTemperature,
	KindStress,
	KindHRV,
	KindExercise,
	KindSportPlus,
	KindSedentary,
	KindUserInfo,
	KindTargetInfo,
	KindManualMeasurements,
}

// uploadAliases maps upload type strings that differ from the collection name.
var uploadAliases = map[string]Kind{
	"manual_measurement": KindManualMeasurements,
}

// AllKinds returns every collection kind in canonical order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is one of the known collections.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Singleton reports whether the collection holds at most one record.
func (k Kind) Singleton() bool {
	return k == KindUserInfo || k == KindTargetInfo
}

// DayBucketed reports whether a batch is summed into one record per day
// before merging. A day's summary is only correct when all of that day's
// segments arrive in the same batch.
func (k Kind) DayBucketed() bool {
	return k == KindSleep || k == KindActivity
}

// ParseUploadType resolves the "type" field of an upload to its collection.
func ParseUploadType(raw string) (Kind, error) {
	name := strings.TrimSpace(raw)
	if k, ok := uploadAliases[name]; ok {
		return k, nil
	}
	k := Kind(name)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return k, nil
}
