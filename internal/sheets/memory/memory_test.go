package memory

import (
	"context"
	"testing"

	"cardbill/internal/core"
	ports "cardbill/internal/sheets"
)

func TestSheet_UpsertReplacesRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	jan := core.NewMonth(2024, 1)

	ref, err := s.UpsertInvoiceRow(ctx, ports.InvoiceRow{Month: jan, CardID: 2, Total: core.Money{Cents: 100}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := s.UpsertInvoiceRow(ctx, ports.InvoiceRow{Month: jan, CardID: 1, Total: core.Money{Cents: 50}}); err != nil {
		t.Fatal(err)
	}
	ref, err = s.UpsertInvoiceRow(ctx, ports.InvoiceRow{Month: jan, CardID: 2, Total: core.Money{Cents: 300}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected replace: ref=%q err=%v", ref, err)
	}

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	rows, err := s.ListInvoiceRows(ctx, jan)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].CardID != 1 || rows[1].Total.Cents != 300 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	rows, _ = s.ListInvoiceRows(ctx, core.NewMonth(2024, 2))
	if len(rows) != 0 {
		t.Fatalf("expected no rows for other month, got %v", rows)
	}
}

func TestSheet_RejectsIncompleteRow(t *testing.T) {
	if _, err := New().UpsertInvoiceRow(context.Background(), ports.InvoiceRow{CardID: 1}); err == nil {
		t.Fatal("expected error for missing month")
	}
}
