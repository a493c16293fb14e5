package services

import (
	"context"
	"fmt"
	"strings"

	"cardbill/internal/core"
	"cardbill/internal/log"
	"cardbill/internal/storage"
)

// CatalogStore is the persistence CatalogService needs.
type CatalogStore interface {
	storage.CardStore
	storage.CategoryStore
}

// CatalogService manages cards and categories.
type CatalogService struct {
	store     CatalogStore
	logger    *log.Logger
	listeners []ChangeListener
}

func NewCatalogService(store CatalogStore, logger *log.Logger) *CatalogService {
	if logger == nil {
		logger = log.Default(log.ComponentCatalog)
	}
	return &CatalogService{store: store, logger: logger.WithComponent(log.ComponentCatalog)}
}

// OnChange registers fn to run after a card is changed or removed.
func (s *CatalogService) OnChange(fn ChangeListener) {
	s.listeners = append(s.listeners, fn)
}

func (s *CatalogService) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	c.Bank = strings.TrimSpace(c.Bank)
	c.Logo = strings.TrimSpace(c.Logo)
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	created, err := s.store.CreateCard(ctx, c)
	if err != nil {
		return core.Card{}, err
	}
	s.logger.InfoContext(ctx, "Card created", log.FieldCardID, created.ID, "bank", created.Bank)
	return created, nil
}

func (s *CatalogService) GetCard(ctx context.Context, id int64) (core.Card, error) {
	return s.store.FindCardByID(ctx, id)
}

func (s *CatalogService) ListCards(ctx context.Context) ([]core.Card, error) {
	return s.store.ListCards(ctx)
}

// UpdateCard applies patch to the card. A new closing day only affects
// purchases created afterwards.
func (s *CatalogService) UpdateCard(ctx context.Context, id int64, patch core.CardPatch) (core.Card, error) {
	current, err := s.store.FindCardByID(ctx, id)
	if err != nil {
		return core.Card{}, err
	}
	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Card{}, err
	}
	if err := s.store.UpdateCard(ctx, updated); err != nil {
		return core.Card{}, err
	}
	s.notify()
	return updated, nil
}

// DeleteCard removes the card together with its purchases and invoices.
func (s *CatalogService) DeleteCard(ctx context.Context, id int64) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Card deleted", log.FieldCardID, id)
	s.notify()
	return nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	c.Label = strings.TrimSpace(c.Label)
	if c.Label == "" {
		c.Label = c.Name
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// DeleteCategory removes the category. Purchases keep their free-text label.
func (s *CatalogService) DeleteCategory(ctx context.Context, name string) error {
	if err := s.store.DeleteCategory(ctx, strings.TrimSpace(name)); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *CatalogService) notify() {
	for _, fn := range s.listeners {
		fn(nil)
	}
}
