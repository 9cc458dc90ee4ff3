// Package importer replays companion app export files into a store without
// going through the HTTP server.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ringvault/ringvault/internal/ingest"
	"github.com/ringvault/ringvault/internal/models"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	Batches   int
	Received  int
	New       int
	Updated   int
	Duplicate int
	Future    int
	Skipped   int

	PerKind       map[string]int
	RejectedTypes []string
}

// Importer feeds export files through an ingester.
type Importer struct {
	ingester ingest.Ingester
	log      zerolog.Logger
	dryRun   bool
	stats    Stats
	rejected map[string]bool
}

// New creates a new Importer. With dryRun set, files are parsed and counted
// but nothing is ingested.
func New(ingester ingest.Ingester, log zerolog.Logger, dryRun bool) *Importer {
	return &Importer{
		ingester: ingester,
		log:      log.With().Str("component", "importer").Logger(),
		dryRun:   dryRun,
		stats:    Stats{PerKind: map[string]int{}},
		rejected: map[string]bool{},
	}
}

// Import processes every export file under dir in path order, so later
// exports win where the merge policy replaces.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	files, err := Discover(dir)
	if err != nil {
		return &imp.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}

		payloads, err := ReadExportFile(f)
		if err != nil {
			imp.log.Warn().Err(err).Str("file", f.RelPath).Msg("parse failed")
			imp.stats.FilesErrored++
			continue
		}
		if len(payloads) == 0 {
			imp.stats.FilesSkipped++
			continue
		}

		if err := imp.importFile(ctx, f, payloads); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", f.RelPath, err)
		}
		imp.stats.FilesProcessed++
	}

	sort.Strings(imp.stats.RejectedTypes)
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, f ExportFile, payloads []models.UploadPayload) error {
	for i := range payloads {
		p := &payloads[i]
		kind, err := models.ParseUploadType(p.Type)
		if err != nil {
			imp.reject(p.Type)
			continue
		}

		if imp.dryRun {
			imp.stats.Batches++
			imp.stats.Received += p.Len()
			imp.stats.PerKind[string(kind)] += p.Len()
			continue
		}

		res, err := imp.ingester.Ingest(ctx, p)
		switch {
		case errors.Is(err, models.ErrMalformedData):
			imp.log.Warn().Err(err).Str("file", f.RelPath).Str("type", p.Type).Msg("skipping malformed batch")
			continue
		case err != nil:
			return err
		}

		imp.stats.Batches++
		imp.stats.Received += res.Received
		imp.stats.New += res.New
		imp.stats.Updated += res.Updated
		imp.stats.Duplicate += res.Duplicate
		imp.stats.Future += res.Future
		imp.stats.Skipped += res.Skipped
		imp.stats.PerKind[res.Kind] += res.New + res.Updated
	}

	imp.log.Debug().Str("file", f.RelPath).Int("batches", len(payloads)).Msg("file imported")
	return nil
}

func (imp *Importer) reject(uploadType string) {
	if imp.rejected[uploadType] {
		return
	}
	imp.rejected[uploadType] = true
	imp.stats.RejectedTypes = append(imp.stats.RejectedTypes, uploadType)
	imp.log.Info().Str("type", uploadType).Msg("skipping unsupported data type")
}
