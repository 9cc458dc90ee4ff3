package ingest

import (
	"context"

	"github.com/ringvault/ringvault/internal/models"
)

// Ingester merges one upload batch into the store.
type Ingester interface {
	Ingest(ctx context.Context, payload *models.UploadPayload) (*Result, error)
}

// Result holds the outcome of an ingest operation.
type Result struct {
	Kind     string `json:"kind"`
	Received int    `json:"received"`
	Accepted int    `json:"accepted"`

	New       int `json:"new"`
	Updated   int `json:"updated"`
	Duplicate int `json:"duplicate"`
	Future    int `json:"future"`
	Skipped   int `json:"skipped"`
	Pruned    int `json:"pruned"`

	Total int `json:"total"`

	Message string `json:"message,omitempty"`
}
