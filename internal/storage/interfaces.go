package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
)

// OperationCache defines the interface for the hot operation journal
type OperationCache interface {
	// AddRecentOperation adds an operation to the recent operations list
	AddRecentOperation(ctx context.Context, op *models.OperationEvent) error

	// GetRecentOperations retrieves the most recent operations, newest first
	GetRecentOperations(ctx context.Context, limit int64) ([]*models.OperationEvent, error)

	// PublishOperation publishes an operation to the Pub/Sub channels
	PublishOperation(ctx context.Context, op *models.OperationEvent) error

	// SubscribeOperations subscribes to real-time operation events
	SubscribeOperations(ctx context.Context) (<-chan *models.OperationEvent, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// SnapshotCache stores the latest dashboard snapshot per wallet
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap *models.DashboardSnapshot) error
	GetSnapshot(ctx context.Context, owner string) (*models.DashboardSnapshot, error)
}

// OperationStore defines the interface for persistent operation storage
type OperationStore interface {
	// InsertOperation inserts an operation into the store
	InsertOperation(ctx context.Context, op *models.OperationEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// OperationHandler is a function that processes operation events
type OperationHandler func(*models.OperationEvent)
