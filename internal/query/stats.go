package query

import (
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/reconcile"
)

// seriesStats derives the summary figures shown next to each chart.
// Averages only consider positive readings.
func seriesStats(kind models.Kind, data []models.Record) map[string]float64 {
	if len(data) == 0 {
		return nil
	}
	switch kind {
	case models.KindStress:
		return positiveStats(data, func(r models.Record) float64 { return r.Num("stress") })
	case models.KindHRV:
		return positiveStats(data, func(r models.Record) float64 { return r.Num("hrv") })
	case models.KindTemperature:
		return positiveStats(data, func(r models.Record) float64 { return r.Num("temperature") })
	case models.KindBloodOxygen:
		return positiveStats(data, reconcile.BloodOxygenValue)
	case models.KindExercise:
		return map[string]float64{
			"total_duration": sum(data, "duration"),
			"total_calories": sum(data, "calories"),
		}
	case models.KindSportPlus:
		out := map[string]float64{
			"total_duration": sum(data, "duration"),
			"total_calories": sum(data, "calories"),
		}
		if avg := positiveStats(data, func(r models.Record) float64 { return r.Num("averageHR") }); avg != nil {
			out["average_hr"] = avg["mean"]
		}
		return out
	case models.KindSedentary:
		return map[string]float64{"total_duration": sum(data, "duration")}
	case models.KindSleep:
		total := sum(data, "duration")
		return map[string]float64{
			"total_duration": total,
			"avg_duration":   total / float64(len(data)),
			"total_deep":     sum(data, "deep"),
		}
	case models.KindActivity:
		return map[string]float64{
			"total_steps":    sum(data, "totalStepCount"),
			"total_calories": sum(data, "calories"),
			"total_distance": sum(data, "distance"),
		}
	}
	return nil
}

func positiveStats(data []models.Record, value func(models.Record) float64) map[string]float64 {
	var total, lo, hi float64
	n := 0
	for _, rec := range data {
		v := value(rec)
		if v <= 0 {
			continue
		}
		if n == 0 || v < lo {
			lo = v
		}
		if n == 0 || v > hi {
			hi = v
		}
		total += v
		n++
	}
	if n == 0 {
		return nil
	}
	return map[string]float64{
		"valid_count": float64(n),
		"mean":        total / float64(n),
		"max":         hi,
		"min":         lo,
	}
}

func sum(data []models.Record, field string) float64 {
	var total float64
	for _, rec := range data {
		total += rec.Num(field)
	}
	return total
}
