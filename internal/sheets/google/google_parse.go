package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cardbill/internal/core"
	ports "cardbill/internal/sheets"
)

// findInvoiceRow returns the 1-based sheet row holding (month, cardID), or 0.
func findInvoiceRow(values [][]any, month core.Month, cardID int64) int {
	wantMonth := month.String()
	wantCard := strconv.FormatInt(cardID, 10)
	for i, row := range values {
		cols := toStrings(row)
		if safeGet(cols, 0) == wantMonth && safeGet(cols, 1) == wantCard {
			return i + 1
		}
	}
	return 0
}

// parseInvoiceRows converts the values of the invoices sheet into rows. The
// header and malformed lines are skipped; skipped counts the malformed ones.
func parseInvoiceRows(values [][]any) (rows []ports.InvoiceRow, skipped int) {
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) == 0 || strings.Join(cols, "") == "" {
			continue
		}
		if i == 0 && strings.EqualFold(safeGet(cols, 0), "month") {
			continue
		}
		row, err := parseInvoiceRow(cols)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

func parseInvoiceRow(cols []string) (ports.InvoiceRow, error) {
	month, err := core.ParseMonth(safeGet(cols, 0))
	if err != nil {
		return ports.InvoiceRow{}, err
	}
	cardID, err := strconv.ParseInt(safeGet(cols, 1), 10, 64)
	if err != nil {
		return ports.InvoiceRow{}, fmt.Errorf("card id: %w", err)
	}
	row := ports.InvoiceRow{Month: month, CardID: cardID, Bank: safeGet(cols, 2)}
	if v := safeGet(cols, 3); v != "" {
		row.DueDay, _ = strconv.Atoi(v)
	}
	cents, err := parseAmountToCents(safeGet(cols, 4))
	if err != nil {
		return ports.InvoiceRow{}, err
	}
	row.Total = core.Money{Cents: cents}
	if v := safeGet(cols, 5); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			row.UpdatedAt = t
		}
	}
	return row, nil
}

// parseAmountToCents accepts sheet-formatted amounts such as "1234.5",
// "1.234,50" or "R$ 12,30". Zero is a valid total here.
func parseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "R$€  ")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
