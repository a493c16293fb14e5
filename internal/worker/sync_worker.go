package worker

import (
	"context"
	"fmt"
	"time"

	"cardbill/internal/amqp"
	"cardbill/internal/core"
	"cardbill/internal/log"
	"cardbill/internal/sheets"
)

// InvoiceSource reads the stored invoices of a month.
type InvoiceSource interface {
	ListInvoicesForMonth(ctx context.Context, month core.Month) ([]core.CardInvoice, error)
}

// SyncWorker mirrors invoice totals from the store into the sheet.
type SyncWorker struct {
	store  InvoiceSource
	sheets sheets.InvoiceWriter
	logger *log.Logger
}

func NewSyncWorker(store InvoiceSource, writer sheets.InvoiceWriter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &SyncWorker{store: store, sheets: writer, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleInvoiceMessage writes the current total of the invoice named by msg.
// The store is re-read so that out-of-order messages converge on the latest total.
func (w *SyncWorker) HandleInvoiceMessage(ctx context.Context, msg *amqp.InvoiceRefreshedMessage) error {
	key, err := msg.Key()
	if err != nil {
		// Malformed messages will never succeed; drop them.
		w.logger.WarnContext(ctx, "Dropping invalid invoice message", log.FieldError, err)
		return nil
	}

	invoices, err := w.store.ListInvoicesForMonth(ctx, key.Month)
	if err != nil {
		return fmt.Errorf("read invoices %s: %w", key.Month, err)
	}
	for _, ci := range invoices {
		if ci.Card.ID != key.CardID {
			continue
		}
		return w.write(ctx, ci)
	}

	w.logger.InfoContext(ctx, "Invoice no longer stored, skipping",
		log.FieldMonth, key.Month.String(),
		log.FieldCardID, key.CardID)
	return nil
}

// SyncMonth mirrors every invoice of month and returns how many rows were written.
func (w *SyncWorker) SyncMonth(ctx context.Context, month core.Month) (int, error) {
	invoices, err := w.store.ListInvoicesForMonth(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("read invoices %s: %w", month, err)
	}
	written := 0
	for _, ci := range invoices {
		if err := w.write(ctx, ci); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// StartupSyncCheck mirrors the current and the next invoice month, covering
// events missed while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, now time.Time) error {
	current := core.MonthOf(now)
	total := 0
	for _, m := range []core.Month{current, current.AddMonths(1)} {
		n, err := w.SyncMonth(ctx, m)
		if err != nil {
			return fmt.Errorf("startup sync: %w", err)
		}
		total += n
	}
	w.logger.InfoContext(ctx, "Startup sync completed", log.FieldCount, total)
	return nil
}

func (w *SyncWorker) write(ctx context.Context, ci core.CardInvoice) error {
	ref, err := w.sheets.UpsertInvoiceRow(ctx, sheets.RowFor(ci))
	if err != nil {
		return fmt.Errorf("write invoice row %s/%d: %w", ci.Invoice.Month, ci.Card.ID, err)
	}
	w.logger.InfoContext(ctx, "Invoice synced",
		log.FieldOperation, log.OpSync,
		log.FieldMonth, ci.Invoice.Month.String(),
		log.FieldCardID, ci.Card.ID,
		log.FieldTotalCents, ci.Invoice.Total.Cents,
		"sheets_ref", ref)
	return nil
}
