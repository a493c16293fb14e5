package sheets

import (
	"context"
	"time"

	"cardbill/internal/core"
)

// InvoiceRow is one line of the invoices sheet: the total of a card for a month.
type InvoiceRow struct {
	Month     core.Month
	CardID    int64
	Bank      string
	DueDay    int
	Total     core.Money
	UpdatedAt time.Time
}

// Ports for outbound adapters.
type (
	// InvoiceWriter mirrors invoice totals. Writing the same (month, card)
	// twice replaces the earlier row.
	InvoiceWriter interface {
		UpsertInvoiceRow(ctx context.Context, row InvoiceRow) (rowRef string, err error)
	}

	InvoiceReader interface {
		ListInvoiceRows(ctx context.Context, month core.Month) ([]InvoiceRow, error)
	}
)

// RowFor builds the sheet row of a stored invoice.
func RowFor(ci core.CardInvoice) InvoiceRow {
	return InvoiceRow{
		Month:     ci.Invoice.Month,
		CardID:    ci.Card.ID,
		Bank:      ci.Card.Bank,
		DueDay:    ci.Card.DueDay,
		Total:     ci.Invoice.Total,
		UpdatedAt: ci.Invoice.UpdatedAt,
	}
}
