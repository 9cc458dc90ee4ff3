package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/importer"
	"github.com/ringvault/ringvault/internal/ingest/qring"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/reconcile"
	"github.com/ringvault/ringvault/internal/storage"
)

type recordingServer struct {
	mu       sync.Mutex
	payloads []models.UploadPayload
}

func (rs *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var p models.UploadPayload
	if err := json.Unmarshal(body, &p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, err := models.ParseUploadType(p.Type); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Unsupported data type"}`))
		return
	}
	rs.mu.Lock()
	rs.payloads = append(rs.payloads, p)
	rs.mu.Unlock()
	w.Write([]byte(`{"success":true}`))
}

func (rs *recordingServer) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.payloads)
}

func writeExport(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupUpload(t *testing.T) (exportDir string, state *StateDB, rs *recordingServer, client *Client) {
	t.Helper()
	exportDir = t.TempDir()
	writeExport(t, exportDir, "heartrate/2025-06-01.json",
		`[{"timestamp":"2025-06-01 10:00:00","heartRate":70},
		  {"timestamp":"2025-06-01 10:05:00","heartRate":71},
		  {"timestamp":"2025-06-01 10:10:00","heartRate":72},
		  {"timestamp":"2025-06-01 10:15:00","heartRate":73},
		  {"timestamp":"2025-06-01 10:20:00","heartRate":74}]`)
	writeExport(t, exportDir, "bundle.json",
		`[{"type":"hrv","data":[{"timestamp":"2025-06-01 03:00:00","hrv":45}]},
		  {"type":"bogus","data":[]}]`)

	var err error
	state, err = OpenStateDB(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	rs = &recordingServer{}
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)
	return exportDir, state, rs, NewClient(srv.URL)
}

func TestUploaderRun(t *testing.T) {
	dir, state, rs, client := setupUpload(t)

	u := New(client, state, dir, Options{BatchSize: 2, Concurrency: 2}, zerolog.Nop())
	stats, err := u.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 2, stats.FilesUploaded)
	assert.Equal(t, 0, stats.FilesErrored)
	// 5 heart rate records in batches of 2, plus one hrv batch.
	assert.Equal(t, 4, stats.BatchesSent)
	assert.Equal(t, 6, stats.RecordsSent)
	assert.Equal(t, 5, stats.PerKind["heartrate"])
	assert.Equal(t, 1, stats.PerKind["hrv"])
	assert.Equal(t, []string{"bogus"}, stats.RejectedTypes)
	assert.Equal(t, 4, rs.count())

	files, records, err := state.Totals()
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, 6, records)
}

// TestUploaderSkipsUploaded verifies a second run sends nothing.
func TestUploaderSkipsUploaded(t *testing.T) {
	dir, state, rs, client := setupUpload(t)

	_, err := New(client, state, dir, Options{}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	sent := rs.count()

	stats, err := New(client, state, dir, Options{}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesSkipped)
	assert.Equal(t, 0, stats.FilesUploaded)
	assert.Equal(t, sent, rs.count())

	// Changing a file makes it eligible again.
	writeExport(t, dir, "heartrate/2025-06-01.json", `[{"timestamp":"2025-06-01 11:00:00","heartRate":80}]`)
	stats, err = New(client, state, dir, Options{}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesUploaded)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestUploaderDryRun(t *testing.T) {
	dir, state, rs, client := setupUpload(t)

	stats, err := New(client, state, dir, Options{DryRun: true, BatchSize: 2}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rs.count())
	assert.Equal(t, 6, stats.RecordsSent)

	files, _, err := state.Totals()
	require.NoError(t, err)
	assert.Equal(t, 0, files, "dry run must not record state")
}

func TestUploaderServerErrorLeavesFileUnmarked(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "heartrate/a.json", `[{"timestamp":"2025-06-01 10:00:00","heartRate":70}]`)
	state, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	stats, err := New(NewClient(srv.URL), state, dir, Options{}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesErrored)

	files, _, err := state.Totals()
	require.NoError(t, err)
	assert.Equal(t, 0, files)
}

func TestSplitPayload(t *testing.T) {
	p := models.UploadPayload{Type: "stress", Data: []byte(`[{"a":1},{"a":2},{"a":3}]`)}

	out, err := splitPayload(p, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Len())
	assert.Equal(t, 1, out[1].Len())
	assert.Equal(t, "stress", out[1].Type)

	out, err = splitPayload(p, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	obj := models.UploadPayload{Type: "user_info", Data: []byte(`{"age":30}`)}
	out, err = splitPayload(obj, 2)
	require.NoError(t, err)
	assert.Equal(t, []models.UploadPayload{obj}, out)
}

var ingestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, clock.Reference)

// ingestServer is an upload endpoint backed by a real provider and store.
func ingestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()
	norm := clock.NewNormalizer(clock.Fixed(ingestNow))
	store := storage.NewStore(nil, clock.Fixed(ingestNow), zerolog.Nop())
	provider := qring.NewProvider(store, reconcile.NewEngine(norm), norm, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p models.UploadPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := provider.Ingest(r.Context(), &p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func writeDailyExport(t *testing.T, dir string) {
	t.Helper()
	writeExport(t, dir, "sleep/night.json",
		`[{"type":2,"happenDate":"2025-06-01 00:30:00","total":120},
		  {"type":3,"happenDate":"2025-06-01 02:30:00","total":60},
		  {"type":4,"happenDate":"2025-06-01 03:30:00","total":30}]`)
	writeExport(t, dir, "activity/day.json",
		`[{"happenDate":"2025-06-01 08:00:00","totalStepCount":1000},
		  {"happenDate":"2025-06-01 09:00:00","totalStepCount":2000},
		  {"happenDate":"2025-06-01 10:00:00","totalStepCount":3000}]`)
	writeExport(t, dir, "heartrate/hr.json",
		`[{"date":"2025-06-01 10:00:00","heartrate":70,"hrId":1},
		  {"date":"2025-06-01 10:05:00","heartrate":71,"hrId":2},
		  {"date":"2025-06-01 10:10:00","heartrate":72,"hrId":3}]`)
}

// TestUploaderKeepsDailyTotals verifies sleep and activity batches are never
// split below a day, so small batch sizes do not lose minutes or steps.
func TestUploaderKeepsDailyTotals(t *testing.T) {
	dir := t.TempDir()
	writeDailyExport(t, dir)
	state, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	srv, store := ingestServer(t)
	stats, err := New(NewClient(srv.URL), state, dir, Options{BatchSize: 2, Concurrency: 3}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesErrored)

	sleep := store.Collection(models.KindSleep)
	require.Len(t, sleep, 1)
	assert.Equal(t, 210.0, sleep[0].Num("duration"))
	assert.Equal(t, 120.0, sleep[0].Num("light"))
	assert.Equal(t, 60.0, sleep[0].Num("deep"))
	assert.Equal(t, 30.0, sleep[0].Num("rem"))

	activity := store.Collection(models.KindActivity)
	require.Len(t, activity, 1)
	assert.Equal(t, 6000.0, activity[0].Num("totalStepCount"))

	// heart rate still splits: 3 records at batch size 2.
	assert.Equal(t, 4, stats.BatchesSent)
	assert.Len(t, store.Collection(models.KindHeartRate), 3)
}

// TestUploadMatchesImport verifies sending an export to a server leaves the
// same collections as replaying it offline.
func TestUploadMatchesImport(t *testing.T) {
	dir := t.TempDir()
	writeDailyExport(t, dir)
	state, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	srv, uploaded := ingestServer(t)
	_, err = New(NewClient(srv.URL), state, dir, Options{BatchSize: 1, Concurrency: 2}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	norm := clock.NewNormalizer(clock.Fixed(ingestNow))
	imported := storage.NewStore(nil, clock.Fixed(ingestNow), zerolog.Nop())
	provider := qring.NewProvider(imported, reconcile.NewEngine(norm), norm, zerolog.Nop())
	_, err = importer.New(provider, zerolog.Nop(), false).Import(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, imported.Snapshot().Collections, uploaded.Snapshot().Collections)
}
