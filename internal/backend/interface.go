package backend

import (
	"cardbill/internal/amqp"
	"cardbill/internal/services"
	"cardbill/internal/storage"
)

// CleanupFunc releases the resources held by a Backend.
type CleanupFunc func() error

// Backend bundles the store and the services built on top of it.
type Backend struct {
	Store     storage.Store
	Purchases *services.PurchaseService
	Catalog   *services.CatalogService
	// Events is nil when AMQP is not configured or unreachable.
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// CategoriesFile overrides the embedded category seed.
	CategoriesFile string

	// AMQP is optional for every backend type.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
