package models

// HeartRateSample is the canonical heart rate record.
type HeartRateSample struct {
	Timestamp string
	HRID      any
	BPM       int
}

func (s HeartRateSample) Record() Record {
	return Record{
		"timestamp": s.Timestamp,
		"hrId":      s.HRID,
		"bpm":       s.BPM,
	}
}

// SleepPeriod is one segment inside a SleepDay.
type SleepPeriod struct {
	Type     int
	Start    string
	End      string
	Duration float64
}

// SleepDay aggregates all sleep segments attributed to one calendar day.
// Stage totals are minutes.
type SleepDay struct {
	Day          string
	BedtimeStart string
	BedtimeEnd   string
	Duration     float64
	Total        float64
	Awake        float64
	Light        float64
	Deep         float64
	REM          float64
	Periods      []SleepPeriod
}

func (d SleepDay) Record() Record {
	periods := make([]any, 0, len(d.Periods))
	for _, p := range d.Periods {
		periods = append(periods, map[string]any{
			"type":     p.Type,
			"start":    p.Start,
			"end":      p.End,
			"duration": p.Duration,
		})
	}
	return Record{
		"day":           d.Day,
		"bedtime_start": d.BedtimeStart,
		"bedtime_end":   d.BedtimeEnd,
		"duration":      d.Duration,
		"total":         d.Total,
		"awake":         d.Awake,
		"light":         d.Light,
		"deep":          d.Deep,
		"rem":           d.REM,
		"periods":       periods,
	}
}

// ActivityDay sums activity samples for one calendar day.
type ActivityDay struct {
	Day            string
	TotalStepCount int
	RunStepCount   int
	Calories       float64
	Distance       float64
	ActiveTime     int
	HappenDate     string
}

func (d ActivityDay) Record() Record {
	return Record{
		"day":            d.Day,
		"totalStepCount": d.TotalStepCount,
		"runStepCount":   d.RunStepCount,
		"calories":       d.Calories,
		"distance":       d.Distance,
		"activeTime":     d.ActiveTime,
		"happenDate":     d.HappenDate,
	}
}
