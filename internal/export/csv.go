// Package export writes invoice installments as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"cardbill/internal/core"
)

// Record is one CSV line: an installment billed in an invoice month.
type Record struct {
	CardID           int64  `csv:"card_id"`
	Bank             string `csv:"bank"`
	Month            string `csv:"month"`
	Purchase         string `csv:"purchase"`
	Category         string `csv:"category"`
	Installment      int    `csv:"installment"`
	Installments     int    `csv:"installments"`
	InstallmentValue string `csv:"installment_value"`
	TotalValue       string `csv:"total_value"`
	PurchaseDate     string `csv:"purchase_date"`
}

// Source is the read side of the store the export needs.
type Source interface {
	ListCards(ctx context.Context) ([]core.Card, error)
	ListInstallments(ctx context.Context, f core.InstallmentFilter) ([]core.Installment, error)
}

// Records converts installments to CSV records; cards supplies the bank names.
func Records(cards []core.Card, installments []core.Installment) []Record {
	banks := make(map[int64]string, len(cards))
	for _, c := range cards {
		banks[c.ID] = c.Bank
	}
	out := make([]Record, 0, len(installments))
	for _, i := range installments {
		out = append(out, Record{
			CardID:           i.CardID,
			Bank:             banks[i.CardID],
			Month:            i.InvoiceMonth.String(),
			Purchase:         i.Name,
			Category:         i.Category,
			Installment:      i.CurrentInstallment,
			Installments:     i.TotalInstallments,
			InstallmentValue: i.InstallmentValue.String(),
			TotalValue:       i.TotalValue.String(),
			PurchaseDate:     i.PurchaseDate.String(),
		})
	}
	return out
}

// Write encodes records with a header line. A zero delimiter means comma.
func Write(w io.Writer, records []Record, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := gocsv.MarshalCSV(records, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Month writes the installments billed in month, optionally restricted to one
// card (cardID 0 = all cards). It returns the number of records written.
func Month(ctx context.Context, src Source, w io.Writer, month core.Month, cardID int64) (int, error) {
	installments, err := src.ListInstallments(ctx, core.InstallmentFilter{CardID: cardID, Month: month})
	if err != nil {
		return 0, fmt.Errorf("list installments: %w", err)
	}
	cards, err := src.ListCards(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}
	records := Records(cards, installments)
	if err := Write(w, records, 0); err != nil {
		return 0, err
	}
	return len(records), nil
}
