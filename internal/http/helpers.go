package http

import (
	"strconv"
	"strings"
	"time"

	"cardbill/internal/core"
	"cardbill/internal/services"
)

type cardRequest struct {
	Bank       string `json:"bank"`
	Logo       string `json:"logo"`
	ClosingDay int    `json:"closingDay"`
	DueDay     int    `json:"dueDay"`
}

type cardPatchRequest struct {
	Bank       *string `json:"bank"`
	Logo       *string `json:"logo"`
	ClosingDay *int    `json:"closingDay"`
	DueDay     *int    `json:"dueDay"`
}

type cardResponse struct {
	ID         int64     `json:"id"`
	Bank       string    `json:"bank"`
	Logo       string    `json:"logo,omitempty"`
	ClosingDay int       `json:"closingDay"`
	DueDay     int       `json:"dueDay"`
	CreatedAt  time.Time `json:"createdAt"`
}

type purchaseRequest struct {
	CardID            int64      `json:"cardId"`
	PurchaseDate      string     `json:"purchaseDate"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	TotalValue        core.Money `json:"totalValue"`
	TotalInstallments int        `json:"totalInstallments"`
}

type purchasePatchRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type installmentResponse struct {
	ID                 int64      `json:"id"`
	GroupID            string     `json:"groupId,omitempty"`
	CardID             int64      `json:"cardId"`
	PurchaseDate       string     `json:"purchaseDate"`
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	TotalValue         core.Money `json:"totalValue"`
	TotalInstallments  int        `json:"totalInstallments"`
	CurrentInstallment int        `json:"currentInstallment"`
	InstallmentValue   core.Money `json:"installmentValue"`
	InvoiceMonth       core.Month `json:"invoiceMonth"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type purchaseGroupResponse struct {
	Selected     installmentResponse   `json:"selected"`
	Installments []installmentResponse `json:"installments"`
}

type invoiceResponse struct {
	Month     core.Month `json:"month"`
	CardID    int64      `json:"cardId"`
	Bank      string     `json:"bank"`
	DueDay    int        `json:"dueDay"`
	Total     core.Money `json:"total"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type monthInvoicesResponse struct {
	Month    core.Month        `json:"month"`
	Total    core.Money        `json:"total"`
	Invoices []invoiceResponse `json:"invoices"`
}

type invoiceDetailResponse struct {
	Invoice      invoiceResponse       `json:"invoice"`
	Installments []installmentResponse `json:"installments"`
}

type categoryRequest struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type categoryResponse struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (c cardRequest) toCard() core.Card {
	return core.Card{
		Bank:       sanitizeInput(c.Bank),
		Logo:       sanitizeInput(c.Logo),
		ClosingDay: c.ClosingDay,
		DueDay:     c.DueDay,
	}
}

func (p cardPatchRequest) toPatch() core.CardPatch {
	patch := core.CardPatch{ClosingDay: p.ClosingDay, DueDay: p.DueDay}
	if p.Bank != nil {
		v := sanitizeInput(*p.Bank)
		patch.Bank = &v
	}
	if p.Logo != nil {
		v := sanitizeInput(*p.Logo)
		patch.Logo = &v
	}
	return patch
}

func (p purchaseRequest) toInput() (core.PurchaseInput, error) {
	date, err := parsePurchaseDate(p.PurchaseDate)
	if err != nil {
		return core.PurchaseInput{}, err
	}
	return core.PurchaseInput{
		CardID:            p.CardID,
		PurchaseDate:      date,
		Name:              sanitizeInput(p.Name),
		Category:          sanitizeInput(p.Category),
		TotalValue:        p.TotalValue,
		TotalInstallments: p.TotalInstallments,
	}, nil
}

func toCardResponse(c core.Card) cardResponse {
	return cardResponse{
		ID:         c.ID,
		Bank:       c.Bank,
		Logo:       c.Logo,
		ClosingDay: c.ClosingDay,
		DueDay:     c.DueDay,
		CreatedAt:  c.CreatedAt,
	}
}

func toInstallmentResponse(i core.Installment) installmentResponse {
	return installmentResponse{
		ID:                 i.ID,
		GroupID:            i.GroupID,
		CardID:             i.CardID,
		PurchaseDate:       i.PurchaseDate.String(),
		Name:               i.Name,
		Category:           i.Category,
		TotalValue:         i.TotalValue,
		TotalInstallments:  i.TotalInstallments,
		CurrentInstallment: i.CurrentInstallment,
		InstallmentValue:   i.InstallmentValue,
		InvoiceMonth:       i.InvoiceMonth,
		CreatedAt:          i.CreatedAt,
	}
}

func toInstallmentResponses(in []core.Installment) []installmentResponse {
	out := make([]installmentResponse, 0, len(in))
	for _, i := range in {
		out = append(out, toInstallmentResponse(i))
	}
	return out
}

func toPurchaseGroupResponse(g services.PurchaseGroup) purchaseGroupResponse {
	return purchaseGroupResponse{
		Selected:     toInstallmentResponse(g.Selected),
		Installments: toInstallmentResponses(g.Installments),
	}
}

func toInvoiceResponse(ci core.CardInvoice) invoiceResponse {
	resp := invoiceResponse{
		Month:  ci.Invoice.Month,
		CardID: ci.Card.ID,
		Bank:   ci.Card.Bank,
		DueDay: ci.Card.DueDay,
		Total:  ci.Invoice.Total,
	}
	if !ci.Invoice.UpdatedAt.IsZero() {
		t := ci.Invoice.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func toMonthInvoicesResponse(ov core.InvoiceOverview) monthInvoicesResponse {
	resp := monthInvoicesResponse{
		Month:    ov.Month,
		Total:    ov.Total,
		Invoices: make([]invoiceResponse, 0, len(ov.Invoices)),
	}
	for _, ci := range ov.Invoices {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse(ci))
	}
	return resp
}

func categoryFrom(req categoryRequest) core.Category {
	return core.Category{Name: sanitizeInput(req.Name), Label: sanitizeInput(req.Label)}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
