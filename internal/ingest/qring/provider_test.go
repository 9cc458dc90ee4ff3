package qring

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/reconcile"
	"github.com/ringvault/ringvault/internal/storage"
)

func newTestProvider() (*Provider, *storage.Store) {
	norm := testNorm()
	store := storage.NewStore(nil, clock.Fixed(convertNow), zerolog.Nop())
	return NewProvider(store, reconcile.NewEngine(norm), norm, zerolog.Nop()), store
}

func payload(t *testing.T, body string) *models.UploadPayload {
	t.Helper()
	var p models.UploadPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return &p
}

// TestIngestHeartRateIdempotent verifies a repeated upload is reported as
// duplicates and leaves the collection unchanged.
func TestIngestHeartRateIdempotent(t *testing.T) {
	p, store := newTestProvider()
	body := `{"type":"heartrate","data":[
		{"date":"2025-06-01 10:00:00","heartrate":72,"hrId":1},
		{"date":"2025-06-01 10:05:00","heartrate":0,"hrId":2},
		{"date":"2025-06-01 10:10:00","heartrate":68,"hrId":3},
		"junk"]}`

	res, err := p.Ingest(context.Background(), payload(t, body))
	require.NoError(t, err)
	assert.Equal(t, "Received 4 heartrate records", res.Message)
	assert.Equal(t, 3, res.New)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, res.Total)

	before := store.Collection(models.KindHeartRate)
	res, err = p.Ingest(context.Background(), payload(t, body))
	require.NoError(t, err)
	assert.Equal(t, 0, res.New)
	assert.Equal(t, 3, res.Duplicate)
	assert.Equal(t, before, store.Collection(models.KindHeartRate))
	assert.NotEmpty(t, store.LastUpdate()[models.KindHeartRate])
}

// TestIngestSleepReplacesDay verifies a second upload for the same night
// replaces the stored summary.
func TestIngestSleepReplacesDay(t *testing.T) {
	p, store := newTestProvider()
	_, err := p.Ingest(context.Background(), payload(t, `{"type":"sleep","data":[
		{"type":2,"happenDate":"2025-05-31 23:00:00","endTime":"2025-06-01 01:00:00","total":120},
		{"type":3,"happenDate":"2025-05-31 23:30:00","endTime":"2025-06-01 02:00:00","total":60}]}`))
	require.NoError(t, err)

	sleep := store.Collection(models.KindSleep)
	require.Len(t, sleep, 1)
	assert.Equal(t, 180.0, sleep[0].Num("duration"))

	res, err := p.Ingest(context.Background(), payload(t, `{"type":"sleep","data":[
		{"type":4,"happenDate":"2025-05-31 22:00:00","total":90}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	sleep = store.Collection(models.KindSleep)
	require.Len(t, sleep, 1)
	assert.Equal(t, 90.0, sleep[0].Num("rem"))
}

// TestIngestManualAlias verifies the singular upload type lands in the
// plural collection with a receipt time.
func TestIngestManualAlias(t *testing.T) {
	p, store := newTestProvider()
	res, err := p.Ingest(context.Background(), payload(t, `{"type":"manual_measurement","data":[{"type":"manual","heartRate":70}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Received 1 manual_measurement records", res.Message)

	recs := store.Collection(models.KindManualMeasurements)
	require.Len(t, recs, 1)
	assert.Equal(t, clock.Format(convertNow), recs[0]["received_at"])
}

// TestIngestSingletonEmpty verifies an empty profile batch neither creates
// a record nor stamps last_update, and a later batch keeps its first record.
func TestIngestSingletonEmpty(t *testing.T) {
	p, store := newTestProvider()
	_, err := p.Ingest(context.Background(), payload(t, `{"type":"user_info","data":[]}`))
	require.NoError(t, err)
	assert.Empty(t, store.Collection(models.KindUserInfo))
	assert.Empty(t, store.LastUpdate())

	_, err = p.Ingest(context.Background(), payload(t, `{"type":"user_info","data":[{"age":30},{"age":31}]}`))
	require.NoError(t, err)

	recs := store.Collection(models.KindUserInfo)
	require.Len(t, recs, 1)
	assert.Equal(t, json.Number("30"), recs[0]["age"])
}

// TestIngestStressNormalizesDate verifies the same instant in two formats
// dedups to one record.
func TestIngestStressNormalizesDate(t *testing.T) {
	p, store := newTestProvider()
	_, err := p.Ingest(context.Background(), payload(t, `{"type":"stress","data":[
		{"date":"2025-06-01 09:00:00","stress":35},
		{"date":"2025-06-01T01:00:00Z","stress":35}]}`))
	require.NoError(t, err)

	recs := store.Collection(models.KindStress)
	require.Len(t, recs, 1)
	assert.Equal(t, "2025-06-01T09:00:00+08:00", recs[0]["date"])
}

func TestIngestRejectsUnknownType(t *testing.T) {
	p, _ := newTestProvider()
	_, err := p.Ingest(context.Background(), payload(t, `{"type":"steps","data":[]}`))
	assert.ErrorIs(t, err, models.ErrUnknownKind)
}

func TestIngestRejectsNonArrayData(t *testing.T) {
	p, _ := newTestProvider()
	_, err := p.Ingest(context.Background(), payload(t, `{"type":"hrv","data":{"hrv":40}}`))
	assert.ErrorIs(t, err, models.ErrMalformedData)
}

// TestIngestBloodOxygenWithoutDate verifies readings with a missing or empty
// date are skipped and reported, while dated ones are kept.
func TestIngestBloodOxygenWithoutDate(t *testing.T) {
	p, store := newTestProvider()
	res, err := p.Ingest(context.Background(), payload(t, `{"type":"blood_oxygen","data":[
		{"bloodOxygen":97},
		{"date":"","bloodOxygen":96},
		{"date":"2025-06-01 09:00:00","bloodOxygen":98}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.New)

	recs := store.Collection(models.KindBloodOxygen)
	require.Len(t, recs, 1)
	assert.Equal(t, clock.Format(convertNow.Add(-3*time.Hour)), recs[0]["date"])
}
