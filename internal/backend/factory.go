package backend

import (
	"context"
	"errors"
	"fmt"

	"cardbill/internal/amqp"
	"cardbill/internal/log"
	"cardbill/internal/services"
	"cardbill/internal/storage"
	"cardbill/internal/storage/memory"
)

// Factory builds a Backend from configuration.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create opens the store, seeds categories, connects the optional event
// publisher and builds the services. An unreachable broker is logged and
// the backend runs without events.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{Store: store}
	opts := []services.PurchaseOption{services.WithLogger(f.logger)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			b.Events = client
			opts = append(opts, services.WithPublisher(client))
		}
	}

	b.Purchases = services.NewPurchaseService(store, opts...)
	b.Catalog = services.NewCatalogService(store, f.logger)
	b.Cleanup = b.close

	f.logger.InfoContext(ctx, "Backend ready",
		"backend", cfg.Type.String(),
		"amqp_enabled", b.Events != nil)
	return b, nil
}

// OpenStore opens the configured store and seeds its categories.
func (f *Factory) OpenStore(ctx context.Context, cfg Config) (storage.Store, error) {
	var store storage.Store
	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store = repo
		f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory store")
	default:
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	cats, err := storage.LoadCategorySeed(cfg.CategoriesFile)
	if err == nil {
		err = storage.SeedCategories(ctx, store, cats)
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	f.logger.DebugContext(ctx, "Categories seeded", log.FieldCount, len(cats))
	return store, nil
}

func (b *Backend) close() error {
	var errs []error
	if b.Events != nil {
		if err := b.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if err := b.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
