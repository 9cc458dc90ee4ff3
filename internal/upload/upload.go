package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ringvault/ringvault/internal/importer"
	"github.com/ringvault/ringvault/internal/models"
)

// Stats tracks upload progress.
type Stats struct {
	mu sync.Mutex

	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	BatchesSent int
	RecordsSent int
	PerKind     map[string]int

	RejectedTypes []string
}

func (s *Stats) addBatch(kind string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BatchesSent++
	s.RecordsSent += n
	if s.PerKind == nil {
		s.PerKind = make(map[string]int)
	}
	s.PerKind[kind] += n
}

func (s *Stats) reject(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.RejectedTypes {
		if r == kind {
			return
		}
	}
	s.RejectedTypes = append(s.RejectedTypes, kind)
}

func (s *Stats) count(field *int) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// Options controls an upload run.
type Options struct {
	DryRun bool
	// BatchSize caps records per request. Zero sends each payload whole.
	BatchSize int
	// Concurrency is the number of kinds sent in parallel per file.
	Concurrency int
	// Rate limits requests per second. Zero disables limiting.
	Rate float64
}

// Uploader walks an export directory and POSTs every batch to the
// RingVault server, skipping files already recorded in the state database.
type Uploader struct {
	client  *Client
	state   *StateDB
	dir     string
	opts    Options
	limiter *rate.Limiter
	log     zerolog.Logger
	stats   Stats
}

// New creates a new Uploader.
func New(client *Client, state *StateDB, dir string, opts Options, log zerolog.Logger) *Uploader {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return &Uploader{
		client:  client,
		state:   state,
		dir:     dir,
		opts:    opts,
		limiter: limiter,
		log:     log.With().Str("component", "upload").Logger(),
	}
}

// Run processes every export file under the directory.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := importer.Discover(u.dir)
	if err != nil {
		return nil, err
	}
	u.stats.FilesTotal = len(files)
	u.log.Info().Int("files", len(files)).Str("dir", u.dir).Msg("discovered export files")

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		if err := u.processFile(ctx, f); err != nil {
			if errors.Is(err, context.Canceled) {
				return &u.stats, err
			}
			u.log.Error().Err(err).Str("file", f.RelPath).Msg("upload failed")
			u.stats.count(&u.stats.FilesErrored)
		}
	}

	return &u.stats, nil
}

func (u *Uploader) processFile(ctx context.Context, f importer.ExportFile) error {
	info, err := os.Stat(f.Path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	hash, err := HashFile(f.Path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	if !u.opts.DryRun {
		prev, found, err := u.state.Lookup(f.RelPath)
		if err != nil {
			return err
		}
		if found && prev.Matches(info.Size(), hash) {
			u.log.Debug().Str("file", f.RelPath).Time("sent_at", prev.SentAt).Msg("already uploaded, skipping")
			u.stats.count(&u.stats.FilesSkipped)
			return nil
		}
	}

	payloads, err := importer.ReadExportFile(f)
	if err != nil {
		return err
	}

	// Batches of one kind go out in file order on a single worker; only
	// different kinds, which merge into separate collections, run in parallel.
	var order []models.Kind
	byKind := make(map[models.Kind][]models.UploadPayload)
	for _, p := range payloads {
		kind, err := models.ParseUploadType(p.Type)
		if err != nil {
			u.stats.reject(p.Type)
			continue
		}
		size := u.opts.BatchSize
		if kind.DayBucketed() || kind.Singleton() {
			size = 0
		}
		split, err := splitPayload(p, size)
		if err != nil {
			return fmt.Errorf("splitting %s: %w", p.Type, err)
		}
		if _, seen := byKind[kind]; !seen {
			order = append(order, kind)
		}
		byKind[kind] = append(byKind[kind], split...)
	}

	batches, records := 0, 0
	for _, kind := range order {
		for i := range byKind[kind] {
			batches++
			records += byKind[kind][i].Len()
		}
	}

	if u.opts.DryRun {
		for _, kind := range order {
			for _, b := range byKind[kind] {
				u.stats.addBatch(b.Type, b.Len())
			}
		}
		u.log.Info().Str("file", f.RelPath).Int("batches", batches).Int("records", records).Msg("dry run")
		u.stats.count(&u.stats.FilesUploaded)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Concurrency)
	for _, kind := range order {
		g.Go(func() error {
			for _, b := range byKind[kind] {
				if err := u.limiter.Wait(gctx); err != nil {
					return err
				}
				if _, err := u.client.SendPayload(gctx, b); err != nil {
					return fmt.Errorf("sending %s batch: %w", b.Type, err)
				}
				u.stats.addBatch(b.Type, b.Len())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := u.state.MarkSent(SentFile{RelPath: f.RelPath, Size: info.Size(), SHA256: hash, Records: records}); err != nil {
		return err
	}
	u.log.Info().Str("file", f.RelPath).Int("batches", batches).Int("records", records).Msg("uploaded")
	u.stats.count(&u.stats.FilesUploaded)
	return nil
}

// splitPayload cuts p.Data into chunks of at most size elements. A
// non-array payload is returned unchanged so the server can reject it.
func splitPayload(p models.UploadPayload, size int) ([]models.UploadPayload, error) {
	if size <= 0 {
		return []models.UploadPayload{p}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(p.Data, &items); err != nil {
		return []models.UploadPayload{p}, nil
	}
	if len(items) <= size {
		return []models.UploadPayload{p}, nil
	}

	var out []models.UploadPayload
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		data, err := json.Marshal(items[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, models.UploadPayload{Type: p.Type, Data: data})
	}
	return out, nil
}
