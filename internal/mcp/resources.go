package mcp

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
)

func (h *handlers) dailySummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.ds.Stats(ctx)
	if err != nil {
		return nil, err
	}

	var latestHR models.Record
	hr, err := h.ds.HeartRate(ctx, 24, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("daily_summary: heart rate query failed")
	} else if len(hr.Data) > 0 {
		latestHR = hr.Data[len(hr.Data)-1]
	}

	summary := map[string]any{
		"last_update":      stats.Data.LastUpdate,
		"latest_heartrate": latestHR,
		"last_sleep":       h.latestDay(ctx, models.KindSleep),
		"activity":         h.latestDay(ctx, models.KindActivity),
	}
	return jsonContents(req.Params.URI, summary)
}

// latestDay returns the newest daily summary of kind from the last two days.
func (h *handlers) latestDay(ctx context.Context, kind models.Kind) models.Record {
	res, err := h.ds.Days(ctx, kind, 1)
	if err != nil {
		h.log.Warn().Err(err).Str("kind", string(kind)).Msg("daily_summary: daily query failed")
		return nil
	}
	if len(res.Data) == 0 {
		return nil
	}
	return res.Data[0]
}

func (h *handlers) profile(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	user, err := h.ds.Profile(ctx, models.KindUserInfo)
	if err != nil {
		return nil, err
	}
	target, err := h.ds.Profile(ctx, models.KindTargetInfo)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, map[string]any{
		"user_info":   user.Data,
		"target_info": target.Data,
	})
}

func (h *handlers) dataCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.ds.Stats(ctx)
	if err != nil {
		return nil, err
	}

	type entry struct {
		Kind       string `json:"kind"`
		Count      int    `json:"count"`
		LastUpdate string `json:"last_update,omitempty"`
		Endpoint   string `json:"endpoint"`
	}
	catalog := make([]entry, 0, len(models.AllKinds()))
	for _, k := range models.AllKinds() {
		catalog = append(catalog, entry{
			Kind:       string(k),
			Count:      stats.Data.Counts[k],
			LastUpdate: stats.Data.LastUpdate[k],
			Endpoint:   query.EndpointPath(k),
		})
	}
	return jsonContents(req.Params.URI, catalog)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
