// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"content_scout/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// Accept stores an item together with its latest analysis.
	Accept(ctx context.Context, item model.ContentItem, analysis model.ContentAnalysis) error
	GetItem(ctx context.Context, platform model.Platform, platformID string) (*model.StoredItem, error)
	// ListTop returns the best scored items at or above minTier.
	ListTop(ctx context.Context, limit int, minTier model.QualityTier) ([]model.StoredItem, error)

	LoadBudgets(ctx context.Context) ([]model.QuotaBudget, error)
	SaveBudget(ctx context.Context, b model.QuotaBudget) error

	RecordScan(ctx context.Context, report model.ScanReport) error
	LastScan(ctx context.Context) (*model.ScanReport, error)

	Close() error
}
