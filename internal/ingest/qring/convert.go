package qring

import (
	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/models"
)

// ConvertHeartRate maps raw samples to canonical heart rate records. Samples
// beyond the future tolerance are dropped and counted. Zero bpm is kept.
func ConvertHeartRate(items []models.Record, norm *clock.Normalizer) (out []models.HeartRateSample, future int) {
	out = make([]models.HeartRateSample, 0, len(items))
	for _, item := range items {
		ts := norm.Now()
		if raw, ok := item["date"].(string); ok && raw != "" {
			ts = norm.Parse(raw)
			if norm.IsFuture(ts) {
				future++
				continue
			}
		}

		bpm := 0
		if v, ok := item.FirstTruthy(HeartRateFields...); ok {
			bpm = models.ToInt(v)
		}

		hrID, ok := item["hrId"]
		if !ok || hrID == nil {
			hrID = 0
		}

		out = append(out, models.HeartRateSample{
			Timestamp: clock.Format(ts),
			HRID:      hrID,
			BPM:       bpm,
		})
	}
	return out, future
}

// ConvertSleep folds sleep segments into per-day summaries, in the order
// days are first seen.
func ConvertSleep(items []models.Record, norm *clock.Normalizer) []models.SleepDay {
	var order []string
	days := make(map[string]*models.SleepDay)

	for _, item := range items {
		happen := item.Str("happenDate")
		day := dayOf(happen, norm)

		end := item.Str("endTime")
		if end == "" {
			end = happen
		}

		d, ok := days[day]
		if !ok {
			d = &models.SleepDay{
				Day:          day,
				BedtimeStart: happen,
				BedtimeEnd:   end,
			}
			days[day] = d
			order = append(order, day)
		}

		minutes := item.Num("total")
		code, _ := models.NormalizeSleepType(item["type"])
		switch code {
		case models.SleepTypeAwake:
			d.Awake += minutes
		case models.SleepTypeLight:
			d.Light += minutes
		case models.SleepTypeDeep:
			d.Deep += minutes
		case models.SleepTypeREM:
			d.REM += minutes
		}
		d.Duration += minutes
		d.Total += minutes
		d.BedtimeEnd = end

		d.Periods = append(d.Periods, models.SleepPeriod{
			Type:     code,
			Start:    happen,
			End:      end,
			Duration: minutes,
		})
	}

	out := make([]models.SleepDay, 0, len(order))
	for _, day := range order {
		out = append(out, *days[day])
	}
	return out
}

// ConvertActivity sums activity samples per day. HappenDate keeps the
// lexicographically greatest raw string seen for the day.
func ConvertActivity(items []models.Record, norm *clock.Normalizer) []models.ActivityDay {
	var order []string
	days := make(map[string]*models.ActivityDay)

	for _, item := range items {
		happen := item.Str("happenDate")
		day := dayOf(happen, norm)

		d, ok := days[day]
		if !ok {
			d = &models.ActivityDay{Day: day, HappenDate: happen}
			days[day] = d
			order = append(order, day)
		}

		d.TotalStepCount += models.ToInt(item["totalStepCount"])
		d.RunStepCount += models.ToInt(item["runStepCount"])
		d.Calories += item.Num("calories")
		d.Distance += item.Num("distance")
		d.ActiveTime += models.ToInt(item["activeTime"])
		if happen > d.HappenDate {
			d.HappenDate = happen
		}
	}

	out := make([]models.ActivityDay, 0, len(order))
	for _, day := range order {
		out = append(out, *days[day])
	}
	return out
}

// NormalizeTimeField rewrites field to the normalized ISO form on records
// where it parses. Unparseable values are left as sent so their dedup key
// stays stable across uploads.
func NormalizeTimeField(items []models.Record, field string) []models.Record {
	out := make([]models.Record, 0, len(items))
	for _, item := range items {
		raw, ok := item[field].(string)
		if !ok {
			out = append(out, item)
			continue
		}
		t, err := clock.ParseStrict(raw)
		if err != nil {
			out = append(out, item)
			continue
		}
		rec := item.Clone()
		rec[field] = clock.Format(t)
		out = append(out, rec)
	}
	return out
}

// dayOf buckets a happenDate into a calendar day, falling back to today.
func dayOf(happen string, norm *clock.Normalizer) string {
	t, err := clock.ParseStrict(happen)
	if err != nil {
		return clock.Day(norm.Now())
	}
	return clock.Day(t)
}
