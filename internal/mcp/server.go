package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log zerolog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RingVault", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RingVault smart ring data server. Query heart rate, HRV, stress, blood oxygen, temperature, workouts, sleep and daily activity. Times are in UTC+08:00."),
	)

	h := &handlers{ds: ds, log: log.With().Str("component", "mcp").Logger()}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetHeartRate, Handler: h.getHeartRate},
		server.ServerTool{Tool: toolGetSeries, Handler: h.getSeries},
		server.ServerTool{Tool: toolGetDaily, Handler: h.getDaily},
		server.ServerTool{Tool: toolGetManualMeasurements, Handler: h.getManualMeasurements},
		server.ServerTool{Tool: toolGetProfile, Handler: h.getProfile},
		server.ServerTool{Tool: toolGetStats, Handler: h.getStats},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resDailySummary, Handler: h.dailySummary},
		server.ServerResource{Resource: resProfile, Handler: h.profile},
		server.ServerResource{Resource: resDataCatalog, Handler: h.dataCatalog},
	)

	return s
}

// NewHTTPHandler serves s over the streamable HTTP transport.
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log zerolog.Logger
}

// --- Resource definitions ---

var resDailySummary = mcp.NewResource(
	"ringvault://daily_summary",
	"Daily Summary",
	mcp.WithResourceDescription("Latest heart rate, last night's sleep and today's activity totals"),
	mcp.WithMIMEType("application/json"),
)

var resProfile = mcp.NewResource(
	"ringvault://profile",
	"Profile",
	mcp.WithResourceDescription("User profile and daily targets as reported by the ring app"),
	mcp.WithMIMEType("application/json"),
)

var resDataCatalog = mcp.NewResource(
	"ringvault://data_catalog",
	"Data Catalog",
	mcp.WithResourceDescription("Stored record counts and last update time per data type"),
	mcp.WithMIMEType("application/json"),
)
