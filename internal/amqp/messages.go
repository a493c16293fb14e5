package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cardbill/internal/core"
)

// MessageTypeInvoiceRefreshed is set as the AMQP type of invoice events.
const MessageTypeInvoiceRefreshed = "invoice.refreshed"

// InvoiceRefreshedMessage announces the new total of one (month, card)
// invoice. Consumers re-read the store rather than trusting the total.
type InvoiceRefreshedMessage struct {
	CardID     int64     `json:"cardId"`
	Month      string    `json:"month"`
	TotalCents int64     `json:"totalCents"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewInvoiceRefreshedMessage(inv core.MonthlyInvoice) *InvoiceRefreshedMessage {
	return &InvoiceRefreshedMessage{
		CardID:     inv.CardID,
		Month:      inv.Month.String(),
		TotalCents: inv.Total.Cents,
		Timestamp:  time.Now(),
	}
}

func (m *InvoiceRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Key validates the message and returns the invoice it refers to.
func (m *InvoiceRefreshedMessage) Key() (core.InvoiceKey, error) {
	if m.CardID <= 0 {
		return core.InvoiceKey{}, fmt.Errorf("invalid card id %d", m.CardID)
	}
	month, err := core.ParseMonth(m.Month)
	if err != nil {
		return core.InvoiceKey{}, err
	}
	return core.InvoiceKey{Month: month, CardID: m.CardID}, nil
}

func InvoiceRefreshedMessageFromJSON(data []byte) (*InvoiceRefreshedMessage, error) {
	var msg InvoiceRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
