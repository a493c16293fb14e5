package core

// InvoiceOverview is a compact summary of every card invoice for one month.
type InvoiceOverview struct {
	Month    Month
	Total    Money
	Invoices []CardInvoice
}

// SummarizeInvoices totals the invoices of a month across cards.
func SummarizeInvoices(month Month, invoices []CardInvoice) InvoiceOverview {
	ov := InvoiceOverview{Month: month, Invoices: invoices}
	for _, ci := range invoices {
		ov.Total = ov.Total.Add(ci.Invoice.Total)
	}
	return ov
}
