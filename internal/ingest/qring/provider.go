package qring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/ingest"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/reconcile"
	"github.com/ringvault/ringvault/internal/storage"
)

// Provider processes ring companion app upload batches.
type Provider struct {
	store  *storage.Store
	engine *reconcile.Engine
	norm   *clock.Normalizer
	log    zerolog.Logger
}

// NewProvider creates a new ring ingest provider.
func NewProvider(store *storage.Store, engine *reconcile.Engine, norm *clock.Normalizer, log zerolog.Logger) *Provider {
	return &Provider{
		store:  store,
		engine: engine,
		norm:   norm,
		log:    log.With().Str("component", "qring").Logger(),
	}
}

// Ingest converts one batch to canonical records and merges it into the
// store. Unknown types and a non-array data field are returned as errors
// before anything is touched.
func (p *Provider) Ingest(ctx context.Context, payload *models.UploadPayload) (*ingest.Result, error) {
	kind, err := models.ParseUploadType(payload.Type)
	if err != nil {
		return nil, err
	}

	items, skipped, err := payload.Items()
	if err != nil {
		return nil, err
	}

	result := &ingest.Result{
		Kind:     string(kind),
		Received: len(items) + skipped,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Received %d %s records", len(items)+skipped, payload.Type),
	}
	if skipped > 0 {
		p.log.Warn().Str("kind", string(kind)).Int("count", skipped).Msg("skipping data points that are not objects")
	}

	records, future := p.convert(kind, items)
	result.Future = future
	result.Accepted = len(records)

	if kind.Singleton() && len(records) == 0 {
		result.Total = len(p.store.Collection(kind))
		return result, nil
	}

	err = p.store.Apply(kind, func(existing []models.Record) ([]models.Record, error) {
		merged, err := p.engine.Merge(kind, existing, records)
		if err != nil {
			return nil, err
		}
		result.New = merged.New
		result.Updated = merged.Updated
		result.Duplicate = merged.Duplicate
		result.Future += merged.Future
		result.Skipped += merged.Skipped
		result.Pruned = merged.Pruned
		result.Total = len(merged.Collection)
		return merged.Collection, nil
	})
	if err != nil {
		return result, fmt.Errorf("merging %s: %w", kind, err)
	}

	p.log.Info().
		Str("kind", string(kind)).
		Int("received", result.Received).
		Int("new", result.New).
		Int("updated", result.Updated).
		Int("duplicate", result.Duplicate).
		Int("future", result.Future).
		Int("skipped", result.Skipped).
		Int("pruned", result.Pruned).
		Int("total", result.Total).
		Msg("batch merged")

	return result, nil
}

// convert maps raw items to canonical records for kind.
func (p *Provider) convert(kind models.Kind, items []models.Record) (records []models.Record, future int) {
	switch DetectMetricShape(kind) {
	case ShapeHeartRate:
		samples, dropped := ConvertHeartRate(items, p.norm)
		records = make([]models.Record, 0, len(samples))
		for _, s := range samples {
			records = append(records, s.Record())
		}
		return records, dropped
	case ShapeSleepSegments:
		days := ConvertSleep(items, p.norm)
		records = make([]models.Record, 0, len(days))
		for _, d := range days {
			records = append(records, d.Record())
		}
		return records, 0
	case ShapeActivityTotals:
		days := ConvertActivity(items, p.norm)
		records = make([]models.Record, 0, len(days))
		for _, d := range days {
			records = append(records, d.Record())
		}
		return records, 0
	case ShapePassThrough:
		field, _ := TimeField(kind)
		return NormalizeTimeField(items, field), 0
	default:
		return items, 0
	}
}
