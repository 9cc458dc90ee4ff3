package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, Reference)

// TestParseStrictForms covers each accepted input shape and checks the
// result lands on the same instant in the reference zone.
func TestParseStrictForms(t *testing.T) {
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, Reference)

	tests := []struct {
		name string
		raw  string
	}{
		{"utc zulu", "2025-06-01T02:00:00Z"},
		{"colon offset", "2025-06-01T10:00:00+08:00"},
		{"compact offset", "2025-06-01T04:00:00+0200"},
		{"naive iso", "2025-06-01T10:00:00"},
		{"naive iso no seconds", "2025-06-01T10:00"},
		{"space form", "2025-06-01 10:00:00"},
		{"padded", "  2025-06-01 10:00:00 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrict(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s", got)
			assert.Equal(t, Reference, got.Location())
		})
	}
}

// TestParseStrictRejects verifies inputs outside the accepted forms fail.
func TestParseStrictRejects(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "2025-06-01", "2025-06-01 10:00:00+08:00", "2025-13-01T10:00:00"} {
		_, err := ParseStrict(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

// TestParseFallsBackToNow verifies Parse never fails the caller.
func TestParseFallsBackToNow(t *testing.T) {
	n := NewNormalizer(Fixed(fixedNow))

	assert.True(t, n.Parse("not a time").Equal(fixedNow))
	assert.True(t, n.ParseValue(nil).Equal(fixedNow))
	assert.True(t, n.ParseValue(12345).Equal(fixedNow))
	assert.True(t, n.ParseValue("2025-05-31 08:00:00").Equal(time.Date(2025, 5, 31, 8, 0, 0, 0, Reference)))
}

// TestIsFuture checks the five minute tolerance boundary.
func TestIsFuture(t *testing.T) {
	n := NewNormalizer(Fixed(fixedNow))

	assert.False(t, n.IsFuture(fixedNow.Add(3*time.Minute)))
	assert.False(t, n.IsFuture(fixedNow.Add(5*time.Minute)))
	assert.True(t, n.IsFuture(fixedNow.Add(10*time.Minute)))
	assert.False(t, n.IsFuture(fixedNow.Add(-time.Hour)))
}

func TestFormat(t *testing.T) {
	ts := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-01T10:00:00+08:00", Format(ts))

	withMicros := time.Date(2025, 6, 1, 10, 0, 0, 250000000, Reference)
	assert.Equal(t, "2025-06-01T10:00:00.250000+08:00", Format(withMicros))
}

// TestDay verifies day bucketing happens in the reference zone, not UTC.
func TestDay(t *testing.T) {
	lateUTC := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-02", Day(lateUTC))
}
