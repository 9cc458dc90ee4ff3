package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
)

// seriesKinds are the hour-windowed kinds get_series accepts.
var seriesKinds = []string{
	string(models.KindHRV),
	string(models.KindStress),
	string(models.KindBloodOxygen),
	string(models.KindTemperature),
	string(models.KindBloodPressure),
	string(models.KindExercise),
	string(models.KindSportPlus),
	string(models.KindSedentary),
}

// --- Tool definitions ---

var toolGetHeartRate = mcp.NewTool("get_heart_rate",
	mcp.WithDescription("Heart rate samples over the last N hours, oldest first. valid_count counts readings above zero."),
	mcp.WithNumber("hours", mcp.Description("Window size in hours. Defaults to 168 (7 days).")),
	mcp.WithBoolean("include_zero", mcp.Description("Include samples where the ring recorded 0 bpm. Defaults to true.")),
)

var toolGetSeries = mcp.NewTool("get_series",
	mcp.WithDescription("Time-stamped readings of one metric over the last N hours, oldest first, with summary statistics."),
	mcp.WithString("metric", mcp.Required(), mcp.Description("Metric to query"), mcp.Enum(seriesKinds...)),
	mcp.WithNumber("hours", mcp.Description("Window size in hours. Defaults to 168 (7 days).")),
)

var toolGetDaily = mcp.NewTool("get_daily",
	mcp.WithDescription("Per-day summaries over the last N days, newest first. Sleep includes stage minutes; activity includes steps, calories and distance."),
	mcp.WithString("metric", mcp.Required(), mcp.Description("Daily summary to query"), mcp.Enum(string(models.KindSleep), string(models.KindActivity))),
	mcp.WithNumber("days", mcp.Description("Window size in days. Defaults to 30.")),
)

var toolGetManualMeasurements = mcp.NewTool("get_manual_measurements",
	mcp.WithDescription("Measurements the user started from the app, newest first, with counts per measurement type."),
	mcp.WithNumber("hours", mcp.Description("Window size in hours. Defaults to 24.")),
	mcp.WithString("type", mcp.Description("Restrict to one measurement type"), mcp.Enum("manual", "realtime", "one_key")),
)

var toolGetProfile = mcp.NewTool("get_profile",
	mcp.WithDescription("The stored user profile or daily targets. Data is null when the app has not sent one."),
	mcp.WithString("kind", mcp.Required(), mcp.Description("Which record to return"), mcp.Enum(string(models.KindUserInfo), string(models.KindTargetInfo))),
)

var toolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription("Record counts per data type and the last time each type was updated."),
)

// --- Tool handlers ---

func (h *handlers) getHeartRate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hours := req.GetInt("hours", query.DefaultHours)
	includeZero := req.GetBool("include_zero", true)

	res, err := h.ds.HeartRate(ctx, hours, includeZero)
	if err != nil {
		h.log.Error().Err(err).Msg("mcp get_heart_rate")
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) getSeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError("metric parameter is required"), nil
	}
	kind := models.Kind(metric)
	if !query.IsSeries(kind) || kind == models.KindHeartRate {
		return mcp.NewToolResultError("unsupported metric: " + metric), nil
	}

	res, err := h.ds.Series(ctx, kind, req.GetInt("hours", query.DefaultHours))
	if err != nil {
		h.log.Error().Err(err).Str("metric", metric).Msg("mcp get_series")
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) getDaily(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError("metric parameter is required"), nil
	}
	kind := models.Kind(metric)
	if !query.IsDaily(kind) {
		return mcp.NewToolResultError("unsupported metric: " + metric), nil
	}

	res, err := h.ds.Days(ctx, kind, req.GetInt("days", query.DefaultDays))
	if err != nil {
		h.log.Error().Err(err).Str("metric", metric).Msg("mcp get_daily")
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) getManualMeasurements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hours := req.GetInt("hours", query.DefaultManualHours)

	res, err := h.ds.ManualMeasurements(ctx, hours, req.GetString("type", ""))
	if err != nil {
		h.log.Error().Err(err).Msg("mcp get_manual_measurements")
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) getProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("kind parameter is required"), nil
	}
	kind := models.Kind(raw)
	if !kind.Singleton() {
		return mcp.NewToolResultError("unsupported kind: " + raw), nil
	}

	res, err := h.ds.Profile(ctx, kind)
	if err != nil {
		h.log.Error().Err(err).Str("kind", raw).Msg("mcp get_profile")
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.ds.Stats(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("mcp get_stats")
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
