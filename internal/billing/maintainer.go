package billing

import (
	"context"
	"fmt"
	"time"

	"cardbill/internal/core"
)

// AggregateStore is the slice of persistence the maintainer needs.
type AggregateStore interface {
	SumInstallmentValues(ctx context.Context, month core.Month, cardID int64) (core.Money, error)
	UpsertMonthlyInvoice(ctx context.Context, inv core.MonthlyInvoice) error
}

// Refresh recomputes the total of (month, card) from the installment rows and
// overwrites the stored invoice. A pair with no installments is stored as zero.
//
// Callers serialize refreshes of the same key (see KeyedMutex) and run them in
// the same transaction as the mutation that triggered them.
func Refresh(ctx context.Context, store AggregateStore, key core.InvoiceKey) (core.MonthlyInvoice, error) {
	total, err := store.SumInstallmentValues(ctx, key.Month, key.CardID)
	if err != nil {
		return core.MonthlyInvoice{}, fmt.Errorf("sum installments for %s: %w", key, err)
	}
	inv := core.MonthlyInvoice{
		Month:     key.Month,
		CardID:    key.CardID,
		Total:     total,
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.UpsertMonthlyInvoice(ctx, inv); err != nil {
		return core.MonthlyInvoice{}, fmt.Errorf("upsert invoice %s: %w", key, err)
	}
	return inv, nil
}

// RefreshKeys refreshes every key in order and returns the stored invoices.
func RefreshKeys(ctx context.Context, store AggregateStore, keys []core.InvoiceKey) ([]core.MonthlyInvoice, error) {
	out := make([]core.MonthlyInvoice, 0, len(keys))
	for _, k := range keys {
		inv, err := Refresh(ctx, store, k)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}
