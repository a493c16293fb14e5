package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cardbill/internal/core"
	"cardbill/internal/export"
	"cardbill/internal/log"
)

const invoiceReadTimeout = 7 * time.Second

// invoiceMonth returns the month overview, coalescing concurrent misses.
func (s *Server) invoiceMonth(ctx context.Context, month core.Month) (core.InvoiceOverview, error) {
	return s.monthCache.Get(ctx, month.String(), func(ctx context.Context) (core.InvoiceOverview, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invoiceReadTimeout)
		defer cancel()
		ov, err := s.purchases.GetInvoicesForMonth(cctx, month)
		if err != nil {
			return core.InvoiceOverview{}, fmt.Errorf("read invoices for %s: %w", month, err)
		}
		log.FromContext(ctx).DebugContext(ctx, "Invoice month cached",
			log.FieldMonth, month.String(),
			log.FieldCount, len(ov.Invoices),
			log.FieldTotalCents, ov.Total.Cents)
		return ov, nil
	})
}

func (s *Server) invoiceDetail(ctx context.Context, month core.Month, cardID int64) (invoiceDetail, error) {
	return s.detailCache.Get(ctx, detailKey(month, cardID), func(ctx context.Context) (invoiceDetail, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invoiceReadTimeout)
		defer cancel()

		card, err := s.catalog.GetCard(cctx, cardID)
		if err != nil {
			return invoiceDetail{}, err
		}
		installments, err := s.purchases.ListInvoiceInstallments(cctx, month, cardID)
		if err != nil {
			return invoiceDetail{}, err
		}
		ov, err := s.invoiceMonth(cctx, month)
		if err != nil {
			return invoiceDetail{}, err
		}

		detail := invoiceDetail{
			Invoice:      core.CardInvoice{Card: card, Invoice: core.MonthlyInvoice{Month: month, CardID: cardID}},
			Installments: installments,
		}
		for _, ci := range ov.Invoices {
			if ci.Invoice.CardID == cardID {
				detail.Invoice.Invoice = ci.Invoice
				break
			}
		}
		return detail, nil
	})
}

func (s *Server) handleMonthInvoices(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r, "month")
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	ov, err := s.invoiceMonth(r.Context(), month)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(toMonthInvoicesResponse(ov)).Write(w)
}

func (s *Server) handleCardInvoice(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r, "month")
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	cardID, err := pathID(r, "cardId")
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	detail, err := s.invoiceDetail(r.Context(), month, cardID)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(invoiceDetailResponse{
		Invoice:      toInvoiceResponse(detail.Invoice),
		Installments: toInstallmentResponses(detail.Installments),
	}).Write(w)
}

// handleRefreshInvoice recomputes one total from the installment rows.
func (s *Server) handleRefreshInvoice(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r, "month")
	if err != nil {
		s.writeError(w, r, err, log.OpRefresh)
		return
	}
	cardID, err := pathID(r, "cardId")
	if err != nil {
		s.writeError(w, r, err, log.OpRefresh)
		return
	}
	inv, err := s.purchases.RefreshInvoice(r.Context(), month, cardID)
	if err != nil {
		s.writeError(w, r, err, log.OpRefresh)
		return
	}
	card, err := s.catalog.GetCard(r.Context(), cardID)
	if err != nil {
		s.writeError(w, r, err, log.OpRefresh)
		return
	}
	NewJSONResponse().Body(toInvoiceResponse(core.CardInvoice{Invoice: inv, Card: card})).Write(w)
}

// handleExportInvoices streams the month's installments as CSV, optionally for one card.
func (s *Server) handleExportInvoices(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r, "month")
	if err != nil {
		s.writeError(w, r, err, log.OpExport)
		return
	}
	var cardID int64
	if v := strings.TrimSpace(r.URL.Query().Get("cardId")); v != "" {
		id, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || id <= 0 {
			s.writeError(w, r, badRequest(fmt.Sprintf("invalid cardId %q", v)), log.OpExport)
			return
		}
		if _, err := s.catalog.GetCard(r.Context(), id); err != nil {
			s.writeError(w, r, err, log.OpExport)
			return
		}
		cardID = id
	}

	var buf bytes.Buffer
	n, err := export.Month(r.Context(), exportSource{s}, &buf, month, cardID)
	if err != nil {
		s.writeError(w, r, err, log.OpExport)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Invoice export written",
		log.FieldOperation, log.OpExport,
		log.FieldMonth, month.String(),
		log.FieldCount, n)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoices-%s.csv"`, month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// exportSource reads through the services so export sees what the API sees.
type exportSource struct {
	s *Server
}

func (e exportSource) ListCards(ctx context.Context) ([]core.Card, error) {
	return e.s.catalog.ListCards(ctx)
}

func (e exportSource) ListInstallments(ctx context.Context, f core.InstallmentFilter) ([]core.Installment, error) {
	return e.s.purchases.ListPurchases(ctx, f)
}
