package query

import "github.com/ringvault/ringvault/internal/models"

var endpoints = map[models.Kind]string{
	models.KindHeartRate:          "/api/heartrate",
	models.KindHRV:                "/api/hrv",
	models.KindStress:             "/api/stress",
	models.KindBloodOxygen:        "/api/blood-oxygen",
	models.KindTemperature:        "/api/temperature",
	models.KindExercise:           "/api/exercise",
	models.KindSportPlus:          "/api/sport-plus",
	models.KindSedentary:          "/api/sedentary",
	models.KindBloodPressure:      "/api/blood-pressure",
	models.KindSleep:              "/api/sleep",
	models.KindActivity:           "/api/daily-activity",
	models.KindManualMeasurements: "/api/manual-measurements",
	models.KindUserInfo:           "/api/user-info",
	models.KindTargetInfo:         "/api/target-info",
}

// EndpointPath is the REST path serving kind, or "" for an unknown kind.
func EndpointPath(kind models.Kind) string {
	return endpoints[kind]
}
