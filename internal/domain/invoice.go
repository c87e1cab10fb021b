package domain

import "time"

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
	InvoicePartial InvoiceStatus = "partial"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceVoid, InvoicePartial:
		return true
	}
	return false
}

type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Invoice belongs to exactly one contract. PaidDate is only expected on paid
// invoices but nothing downstream relies on that.
type Invoice struct {
	ID         string        `json:"id"`
	ContractID string        `json:"contract_id"`
	CustomerID string        `json:"customer_id"`
	Amount     float64       `json:"amount"`
	Currency   string        `json:"currency"`
	DueDate    time.Time     `json:"due_date"`
	PaidDate   *time.Time    `json:"paid_date,omitempty"`
	Status     InvoiceStatus `json:"status"`
	LineItems  []LineItem    `json:"line_items,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
