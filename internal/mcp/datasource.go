package mcp

import (
	"context"

	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
)

// DataSource abstracts the data layer for MCP tools. Both *query.Service
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	HeartRate(ctx context.Context, hours int, includeZero bool) (*query.SeriesResult, error)
	Series(ctx context.Context, kind models.Kind, hours int) (*query.SeriesResult, error)
	Days(ctx context.Context, kind models.Kind, days int) (*query.SeriesResult, error)
	ManualMeasurements(ctx context.Context, hours int, measurementType string) (*query.ManualResult, error)
	Profile(ctx context.Context, kind models.Kind) (*query.ProfileResult, error)
	Stats(ctx context.Context) (*query.StatsResult, error)
}

// Compile-time check: *query.Service satisfies DataSource.
var _ DataSource = (*query.Service)(nil)
