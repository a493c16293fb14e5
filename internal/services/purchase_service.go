package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cardbill/internal/billing"
	"cardbill/internal/core"
	"cardbill/internal/log"
	"cardbill/internal/storage"
)

// EventPublisher announces refreshed invoice totals. Publishing is best
// effort: failures are logged and never fail the mutation.
type EventPublisher interface {
	PublishInvoiceRefreshed(ctx context.Context, inv core.MonthlyInvoice) error
}

// ChangeListener is told which invoice keys a mutation touched. A nil slice
// means any invoice may have changed.
type ChangeListener func(keys []core.InvoiceKey)

// PurchaseGroup is one purchase event: the requested installment and all of
// its siblings.
type PurchaseGroup struct {
	Selected     core.Installment
	Installments []core.Installment
}

// PurchaseService creates and deletes purchases and keeps the monthly invoice
// totals consistent with the installment rows.
type PurchaseService struct {
	store     storage.Store
	publisher EventPublisher
	locks     *billing.KeyedMutex
	logger    *log.Logger
	events    *log.StructuredLogger
	listeners []ChangeListener
	newGroup  func() string
}

type PurchaseOption func(*PurchaseService)

func WithPublisher(p EventPublisher) PurchaseOption {
	return func(s *PurchaseService) { s.publisher = p }
}

func WithLogger(l *log.Logger) PurchaseOption {
	return func(s *PurchaseService) { s.logger = l.WithComponent(log.ComponentPurchase) }
}

func NewPurchaseService(store storage.Store, opts ...PurchaseOption) *PurchaseService {
	s := &PurchaseService{
		store:    store,
		locks:    billing.NewKeyedMutex(),
		logger:   log.Default(log.ComponentPurchase),
		newGroup: billing.NewGroupID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// OnChange registers fn to be called after every committed mutation.
func (s *PurchaseService) OnChange(fn ChangeListener) {
	s.listeners = append(s.listeners, fn)
}

func normalizeInput(in core.PurchaseInput) core.PurchaseInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

// CreatePurchase splits in into installments, stores them and refreshes every
// invoice they land in, all in one transaction. It returns the first installment.
func (s *PurchaseService) CreatePurchase(ctx context.Context, in core.PurchaseInput) (core.Installment, error) {
	in = normalizeInput(in)
	if err := in.Validate(); err != nil {
		return core.Installment{}, err
	}

	groupID := s.newGroup()
	planned, _, err := billing.AllocateForCard(ctx, s.store, in, groupID)
	if err != nil {
		return core.Installment{}, err
	}
	keys := billing.KeysOf(planned)

	unlock := s.locks.LockAll(keys)
	var (
		first    core.Installment
		invoices []core.MonthlyInvoice
	)
	err = s.store.InTx(ctx, func(tx storage.LedgerStore) error {
		// The card may have been removed since allocation.
		if _, err := tx.FindCardByID(ctx, in.CardID); err != nil {
			return err
		}
		for i, inst := range planned {
			saved, err := tx.InsertInstallment(ctx, inst)
			if err != nil {
				return err
			}
			if i == 0 {
				first = saved
			}
		}
		refreshed, err := billing.RefreshKeys(ctx, tx, keys)
		invoices = refreshed
		return err
	})
	unlock()
	if err != nil {
		return core.Installment{}, fmt.Errorf("create purchase: %w", err)
	}

	s.events.LogPurchaseCreated(ctx, in.CardID, groupID, in.Name, in.TotalValue.Cents, in.TotalInstallments)
	s.afterCommit(ctx, keys, invoices)
	return first, nil
}

// DeletePurchase removes the purchase the installment id belongs to, with all
// of its siblings, and refreshes the affected invoices. Unknown ids are a no-op.
func (s *PurchaseService) DeletePurchase(ctx context.Context, id int64) error {
	inst, err := s.store.FindInstallmentByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.DebugContext(ctx, "Delete of unknown purchase ignored", log.FieldPurchaseID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete purchase %d: %w", id, err)
	}

	key := inst.SiblingKey()
	siblings, err := s.store.FindInstallmentSiblings(ctx, key)
	if err != nil {
		return fmt.Errorf("delete purchase %d: %w", id, err)
	}
	keys := billing.KeysOf(siblings)

	unlock := s.locks.LockAll(keys)
	var invoices []core.MonthlyInvoice
	err = s.store.InTx(ctx, func(tx storage.LedgerStore) error {
		if err := tx.DeleteInstallmentSiblings(ctx, key); err != nil {
			return err
		}
		var err error
		invoices, err = billing.RefreshKeys(ctx, tx, keys)
		return err
	})
	unlock()
	if err != nil {
		return fmt.Errorf("delete purchase %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Purchase deleted",
		log.FieldPurchaseID, id,
		log.FieldGroupID, inst.GroupID,
		log.FieldInstallments, len(siblings))
	s.afterCommit(ctx, keys, invoices)
	return nil
}

// GetPurchase returns the installment with its siblings.
func (s *PurchaseService) GetPurchase(ctx context.Context, id int64) (PurchaseGroup, error) {
	inst, err := s.store.FindInstallmentByID(ctx, id)
	if err != nil {
		return PurchaseGroup{}, err
	}
	siblings, err := s.store.FindInstallmentSiblings(ctx, inst.SiblingKey())
	if err != nil {
		return PurchaseGroup{}, fmt.Errorf("get purchase %d: %w", id, err)
	}
	return PurchaseGroup{Selected: inst, Installments: siblings}, nil
}

func (s *PurchaseService) ListPurchases(ctx context.Context, f core.InstallmentFilter) ([]core.Installment, error) {
	return s.store.ListInstallments(ctx, f)
}

// RenamePurchase changes the name and category of every installment of the
// purchase. Amounts and invoice months are untouched. Legacy installments
// without a group id get a fresh one in the same transaction, so the renamed
// group can no longer be confused with another legacy purchase.
func (s *PurchaseService) RenamePurchase(ctx context.Context, id int64, name, category string) (PurchaseGroup, error) {
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)
	if name == "" {
		return PurchaseGroup{}, &core.ValidationError{Field: "name", Err: core.ErrEmptyName}
	}
	if len(name) > core.MaxNameLength {
		return PurchaseGroup{}, &core.ValidationError{Field: "name", Err: core.ErrNameTooLong}
	}

	inst, err := s.store.FindInstallmentByID(ctx, id)
	if err != nil {
		return PurchaseGroup{}, err
	}
	siblings, err := s.store.FindInstallmentSiblings(ctx, inst.SiblingKey())
	if err != nil {
		return PurchaseGroup{}, fmt.Errorf("rename purchase %d: %w", id, err)
	}

	unlock := s.locks.LockAll(billing.KeysOf(siblings))
	err = s.store.InTx(ctx, func(tx storage.LedgerStore) error {
		cur, err := tx.FindInstallmentByID(ctx, id)
		if err != nil {
			return err
		}
		groupID := cur.GroupID
		if groupID == "" {
			groupID = s.newGroup()
		}
		return tx.UpdateInstallmentDetails(ctx, cur.SiblingKey(), groupID, name, category)
	})
	unlock()
	if err != nil {
		return PurchaseGroup{}, fmt.Errorf("rename purchase %d: %w", id, err)
	}
	group, err := s.GetPurchase(ctx, id)
	if err != nil {
		return PurchaseGroup{}, err
	}
	s.notify(billing.KeysOf(group.Installments))
	return group, nil
}

// GetInvoicesForMonth returns every card invoice stored for month.
func (s *PurchaseService) GetInvoicesForMonth(ctx context.Context, month core.Month) (core.InvoiceOverview, error) {
	invoices, err := s.store.ListInvoicesForMonth(ctx, month)
	if err != nil {
		return core.InvoiceOverview{}, err
	}
	return core.SummarizeInvoices(month, invoices), nil
}

// ListInvoiceInstallments returns the installments billed to one card in month.
func (s *PurchaseService) ListInvoiceInstallments(ctx context.Context, month core.Month, cardID int64) ([]core.Installment, error) {
	if _, err := s.store.FindCardByID(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.ListInstallments(ctx, core.InstallmentFilter{CardID: cardID, Month: month})
}

// RefreshInvoice recomputes one (month, card) total on demand.
func (s *PurchaseService) RefreshInvoice(ctx context.Context, month core.Month, cardID int64) (core.MonthlyInvoice, error) {
	if _, err := s.store.FindCardByID(ctx, cardID); err != nil {
		return core.MonthlyInvoice{}, err
	}
	key := core.InvoiceKey{Month: month, CardID: cardID}
	inv, err := s.refresh(ctx, key)
	if err != nil {
		return core.MonthlyInvoice{}, err
	}
	s.afterCommit(ctx, []core.InvoiceKey{key}, []core.MonthlyInvoice{inv})
	return inv, nil
}

// ReconcileAll refreshes every (month, card) pair known to the store and
// returns how many totals changed.
func (s *PurchaseService) ReconcileAll(ctx context.Context) (int, error) {
	keys, err := s.store.ListInvoiceKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list invoice keys: %w", err)
	}

	before := make(map[core.InvoiceKey]core.Money)
	months := make(map[core.Month]bool)
	for _, k := range keys {
		if months[k.Month] {
			continue
		}
		months[k.Month] = true
		invoices, err := s.store.ListInvoicesForMonth(ctx, k.Month)
		if err != nil {
			return 0, fmt.Errorf("list invoices %s: %w", k.Month, err)
		}
		for _, ci := range invoices {
			before[core.InvoiceKey{Month: ci.Invoice.Month, CardID: ci.Invoice.CardID}] = ci.Invoice.Total
		}
	}

	changed := 0
	var changedKeys []core.InvoiceKey
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		inv, err := s.refresh(ctx, k)
		if err != nil {
			return changed, err
		}
		if prev, ok := before[k]; ok && prev == inv.Total {
			continue
		}
		changed++
		changedKeys = append(changedKeys, k)
		s.publish(ctx, inv)
	}
	if changed > 0 {
		s.notify(changedKeys)
	}
	s.logger.InfoContext(ctx, "Reconciliation finished",
		log.FieldOperation, log.OpReconcile,
		log.FieldCount, len(keys),
		"changed", changed)
	return changed, nil
}

func (s *PurchaseService) refresh(ctx context.Context, key core.InvoiceKey) (core.MonthlyInvoice, error) {
	unlock := s.locks.LockAll([]core.InvoiceKey{key})
	defer unlock()

	var inv core.MonthlyInvoice
	err := s.store.InTx(ctx, func(tx storage.LedgerStore) error {
		var err error
		inv, err = billing.Refresh(ctx, tx, key)
		return err
	})
	if err != nil {
		return core.MonthlyInvoice{}, fmt.Errorf("refresh invoice %s: %w", key, err)
	}
	s.events.LogInvoiceRefreshed(ctx, key.Month.String(), key.CardID, inv.Total.Cents)
	return inv, nil
}

func (s *PurchaseService) afterCommit(ctx context.Context, keys []core.InvoiceKey, invoices []core.MonthlyInvoice) {
	s.notify(keys)
	for _, inv := range invoices {
		s.publish(ctx, inv)
	}
}

func (s *PurchaseService) notify(keys []core.InvoiceKey) {
	for _, fn := range s.listeners {
		fn(keys)
	}
}

func (s *PurchaseService) publish(ctx context.Context, inv core.MonthlyInvoice) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInvoiceRefreshed(ctx, inv); err != nil {
		s.events.LogError(ctx, "Failed to publish invoice refresh", err, log.OpPublish,
			log.NewFields().WithInvoice(inv.Month.String(), inv.CardID, inv.Total.Cents))
	}
}
