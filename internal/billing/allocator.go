// Package billing holds the invoice rules: which invoice month every
// installment of a purchase lands in, and how a (card, month) total is
// recomputed from the installment rows.
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cardbill/internal/core"
)

// CardFinder resolves a card by id; it must return core.ErrCardNotFound for unknown ids.
type CardFinder interface {
	FindCardByID(ctx context.Context, id int64) (core.Card, error)
}

// NewGroupID returns a fresh purchase group identifier.
func NewGroupID() string {
	return uuid.NewString()
}

// FirstInvoiceMonth returns the invoice month of the first installment of a
// purchase made on purchaseDate with a card closing on closingDay.
// Days are compared as plain integers: a closing day past the end of the
// purchase month (e.g. 31 in February) is never reached, so every purchase
// of that month stays in it.
func FirstInvoiceMonth(purchaseDate core.Date, closingDay int) core.Month {
	month := core.MonthOf(purchaseDate.Time)
	if purchaseDate.Day() >= closingDay {
		return month.AddMonths(1)
	}
	return month
}

// Allocate splits a purchase into one installment per month, starting at the
// first invoice month. All returned installments share groupID.
func Allocate(in core.PurchaseInput, card core.Card, groupID string) []core.Installment {
	if in.TotalInstallments < 1 {
		return nil
	}
	first := FirstInvoiceMonth(in.PurchaseDate, card.ClosingDay)
	values := in.TotalValue.Split(in.TotalInstallments)

	out := make([]core.Installment, in.TotalInstallments)
	for i := range out {
		out[i] = core.Installment{
			GroupID:            groupID,
			CardID:             card.ID,
			PurchaseDate:       in.PurchaseDate,
			Name:               in.Name,
			Category:           in.Category,
			TotalValue:         in.TotalValue,
			TotalInstallments:  in.TotalInstallments,
			CurrentInstallment: i + 1,
			InstallmentValue:   values[i],
			InvoiceMonth:       first.AddMonths(i),
		}
	}
	return out
}

// AllocateForCard looks the card up and allocates the purchase against it.
func AllocateForCard(ctx context.Context, cards CardFinder, in core.PurchaseInput, groupID string) ([]core.Installment, core.Card, error) {
	card, err := cards.FindCardByID(ctx, in.CardID)
	if err != nil {
		return nil, core.Card{}, fmt.Errorf("find card %d: %w", in.CardID, err)
	}
	return Allocate(in, card, groupID), card, nil
}

// KeysOf returns the distinct (month, card) pairs touched by the installments,
// in first-seen order.
func KeysOf(installments []core.Installment) []core.InvoiceKey {
	seen := make(map[core.InvoiceKey]struct{}, len(installments))
	keys := make([]core.InvoiceKey, 0, len(installments))
	for _, inst := range installments {
		k := inst.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
