package repository

import (
	"objectsguesser/internal/model"
)

// RequestRepository defines the interface for request log operations.
type RequestRepository interface {
	// Create operations
	InsertBatch(records []model.RequestRecord) error

	// Read operations
	GetAll(filter *model.RequestFilter) ([]model.RequestRecord, error)
	GetTotalCount(filter *model.RequestFilter) (int, error)
	GetStats() (*model.RequestStats, error)

	// Delete operations
	DeleteAll() error
}
