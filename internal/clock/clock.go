// Package clock normalizes ring timestamps into the reference zone.
//
// The ring companion app reports wall-clock times without an offset for most
// metrics. Those are interpreted in Singapore time (UTC+8), which is also the
// zone every normalized timestamp is rendered in.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// Reference is the zone all ring timestamps are normalized into.
// Singapore has observed a fixed UTC+8 offset since 1982.
var Reference = time.FixedZone("SGT", 8*60*60)

// FutureTolerance is how far past "now" a sample may lie before it is
// treated as a clock-skewed future sample and dropped.
const FutureTolerance = 5 * time.Minute

const (
	// SpaceLayout is the companion app's native "YYYY-MM-DD HH:MM:SS" form.
	SpaceLayout = "2006-01-02 15:04:05"
	// DayLayout is the calendar-day key used by sleep and activity buckets.
	DayLayout = "2006-01-02"

	isoSeconds = "2006-01-02T15:04:05-07:00"
	isoMicros  = "2006-01-02T15:04:05.000000-07:00"
)

// ISO layouts with an explicit offset. Go accepts a fractional second after
// the seconds field even when the layout omits it.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04-0700",
}

// ISO layouts without an offset; interpreted in Reference.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().In(Reference) }

// Fixed is a clock frozen at a single instant, used by tests and replays.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f).In(Reference) }

// Normalizer parses timestamps relative to a clock.
type Normalizer struct {
	clock Clock
}

// NewNormalizer returns a Normalizer bound to c. A nil clock uses System.
func NewNormalizer(c Clock) *Normalizer {
	if c == nil {
		c = System{}
	}
	return &Normalizer{clock: c}
}

// Now returns the current instant in Reference.
func (n *Normalizer) Now() time.Time {
	return n.clock.Now().In(Reference)
}

// Parse never fails: unparseable input yields Now().
func (n *Normalizer) Parse(raw string) time.Time {
	t, err := ParseStrict(raw)
	if err != nil {
		return n.Now()
	}
	return t
}

// ParseValue accepts any decoded JSON value and parses it when it is a
// string; everything else falls back to Now().
func (n *Normalizer) ParseValue(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return n.Now()
	}
	return n.Parse(s)
}

// IsFuture reports whether t is beyond the future tolerance.
func (n *Normalizer) IsFuture(t time.Time) bool {
	return IsFuture(t, n.Now())
}

// ParseStrict parses an ISO-8601 timestamp (any string containing "T") or
// the "YYYY-MM-DD HH:MM:SS" form. The result is always in Reference.
func ParseStrict(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if !strings.Contains(s, "T") {
		t, err := time.ParseInLocation(SpaceLayout, s, Reference)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", raw, err)
		}
		return t, nil
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(Reference), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, Reference); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unrecognized ISO-8601 form", raw)
}

// IsFuture reports whether t lies more than FutureTolerance after now.
func IsFuture(t, now time.Time) bool {
	return t.After(now.Add(FutureTolerance))
}

// Format renders t as ISO-8601 with a numeric offset in Reference.
// Microseconds are only included when non-zero.
func Format(t time.Time) string {
	t = t.In(Reference)
	if t.Nanosecond()/1000 == 0 {
		return t.Format(isoSeconds)
	}
	return t.Format(isoMicros)
}

// Day returns the calendar day of t in Reference.
func Day(t time.Time) string {
	return t.In(Reference).Format(DayLayout)
}
