package storage

import (
	"context"

	"cardbill/internal/core"
)

// Ports implemented by the SQLite repository and the in-memory store.
type (
	CardStore interface {
		CreateCard(ctx context.Context, c core.Card) (core.Card, error)
		// FindCardByID returns core.ErrCardNotFound for unknown ids.
		FindCardByID(ctx context.Context, id int64) (core.Card, error)
		ListCards(ctx context.Context) ([]core.Card, error)
		UpdateCard(ctx context.Context, c core.Card) error
		// DeleteCard removes the card with its installments and invoices.
		DeleteCard(ctx context.Context, id int64) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		// CreateCategory returns core.ErrCategoryExists on duplicate names.
		CreateCategory(ctx context.Context, c core.Category) error
		// EnsureCategory inserts c unless a category with the same name exists.
		EnsureCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, name string) error
	}

	// LedgerStore holds the installment and invoice operations that run
	// inside a purchase transaction.
	LedgerStore interface {
		FindCardByID(ctx context.Context, id int64) (core.Card, error)
		InsertInstallment(ctx context.Context, i core.Installment) (core.Installment, error)
		// FindInstallmentByID returns core.ErrNotFound for unknown ids.
		FindInstallmentByID(ctx context.Context, id int64) (core.Installment, error)
		FindInstallmentSiblings(ctx context.Context, key core.SiblingKey) ([]core.Installment, error)
		DeleteInstallmentSiblings(ctx context.Context, key core.SiblingKey) error
		// UpdateInstallmentDetails sets group id, name and category on every
		// installment matching key.
		UpdateInstallmentDetails(ctx context.Context, key core.SiblingKey, groupID, name, category string) error
		SumInstallmentValues(ctx context.Context, month core.Month, cardID int64) (core.Money, error)
		UpsertMonthlyInvoice(ctx context.Context, inv core.MonthlyInvoice) error
	}

	// Store is the full persistence port used by the services.
	Store interface {
		CardStore
		CategoryStore
		LedgerStore

		ListInstallments(ctx context.Context, f core.InstallmentFilter) ([]core.Installment, error)
		ListInvoicesForMonth(ctx context.Context, month core.Month) ([]core.CardInvoice, error)
		// ListInvoiceKeys returns every (month, card) pair known to either
		// the installments or the invoice table.
		ListInvoiceKeys(ctx context.Context) ([]core.InvoiceKey, error)

		// InTx runs fn in a transaction; any error rolls every write back.
		InTx(ctx context.Context, fn func(LedgerStore) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
