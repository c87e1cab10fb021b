package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/renewal-analytics/internal/currency"
	"github.com/wakala/renewal-analytics/internal/domain"
)

// Bundle is a billing-platform export of contracts with their invoices and
// subscriptions.
type Bundle struct {
	Contracts     []domain.Contract
	Invoices      []domain.Invoice
	Subscriptions []domain.Subscription
}

// Records is the total number of records in the bundle.
func (b *Bundle) Records() int {
	return len(b.Contracts) + len(b.Invoices) + len(b.Subscriptions)
}

type bundleFile struct {
	ExportedAt    string            `json:"exported_at"`
	Contracts     []bundleContract  `json:"contracts"`
	Invoices      []bundleInvoice   `json:"invoices"`
	Subscriptions []bundleSubscript `json:"subscriptions"`
}

type bundleContract struct {
	ID               string  `json:"id"`
	CustomerID       string  `json:"customer_id"`
	CustomerName     string  `json:"customer_name"`
	ContractNumber   string  `json:"contract_number"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	RenewalDate      string  `json:"renewal_date"`
	TotalValue       float64 `json:"total_value"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	BillingFrequency string  `json:"billing_frequency"`
	AutoRenewal      bool    `json:"auto_renewal"`
	Terms            string  `json:"terms"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type bundleInvoice struct {
	ID         string            `json:"id"`
	ContractID string            `json:"contract_id"`
	CustomerID string            `json:"customer_id"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	DueDate    string            `json:"due_date"`
	PaidDate   string            `json:"paid_date"`
	Status     string            `json:"status"`
	LineItems  []domain.LineItem `json:"line_items"`
	CreatedAt  string            `json:"created_at"`
}

type bundleSubscript struct {
	ID          string   `json:"id"`
	ContractID  string   `json:"contract_id"`
	CustomerID  string   `json:"customer_id"`
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`
	TotalPrice  float64  `json:"total_price"`
	UsageAmount *float64 `json:"usage_amount"`
	UsageLimit  *float64 `json:"usage_limit"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Status      string   `json:"status"`
}

// ParseBundleJSON parses the json_bundle export format. Dates may be plain
// dates or RFC3339 timestamps.
func ParseBundleJSON(data []byte) (*Bundle, error) {
	var file bundleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	exportedAt := time.Now().UTC()
	if file.ExportedAt != "" {
		t, err := parseDate(file.ExportedAt)
		if err != nil {
			return nil, fmt.Errorf("exported_at: %w", err)
		}
		exportedAt = t
	}

	b := &Bundle{}
	for i, c := range file.Contracts {
		contract, err := c.toDomain(exportedAt)
		if err != nil {
			return nil, fmt.Errorf("contract %d: %w", i, err)
		}
		b.Contracts = append(b.Contracts, contract)
	}
	for i, inv := range file.Invoices {
		invoice, err := inv.toDomain()
		if err != nil {
			return nil, fmt.Errorf("invoice %d: %w", i, err)
		}
		b.Invoices = append(b.Invoices, invoice)
	}
	for i, s := range file.Subscriptions {
		sub, err := s.toDomain()
		if err != nil {
			return nil, fmt.Errorf("subscription %d: %w", i, err)
		}
		b.Subscriptions = append(b.Subscriptions, sub)
	}
	return b, nil
}

func (c bundleContract) toDomain(exportedAt time.Time) (domain.Contract, error) {
	out := domain.Contract{
		ID:               strings.TrimSpace(c.ID),
		CustomerID:       strings.TrimSpace(c.CustomerID),
		CustomerName:     c.CustomerName,
		ContractNumber:   c.ContractNumber,
		TotalValue:       c.TotalValue,
		Status:           domain.ContractStatus(c.Status),
		BillingFrequency: domain.BillingFrequency(c.BillingFrequency),
		AutoRenewal:      c.AutoRenewal,
		Terms:            c.Terms,
		CreatedAt:        exportedAt,
		UpdatedAt:        exportedAt,
	}
	if out.ID == "" || out.CustomerID == "" {
		return out, fmt.Errorf("id and customer_id are required")
	}
	if !out.Status.Valid() {
		return out, fmt.Errorf("%s: unknown status %q", out.ID, c.Status)
	}
	if !out.BillingFrequency.Valid() {
		return out, fmt.Errorf("%s: unknown billing frequency %q", out.ID, c.BillingFrequency)
	}

	var err error
	if out.Currency, err = normalizeCurrency(c.Currency); err != nil {
		return out, fmt.Errorf("%s: %w", out.ID, err)
	}
	if out.StartDate, err = parseDate(c.StartDate); err != nil {
		return out, fmt.Errorf("%s start_date: %w", out.ID, err)
	}
	if out.EndDate, err = parseDate(c.EndDate); err != nil {
		return out, fmt.Errorf("%s end_date: %w", out.ID, err)
	}
	if out.RenewalDate, err = parseDate(c.RenewalDate); err != nil {
		return out, fmt.Errorf("%s renewal_date: %w", out.ID, err)
	}
	if out.EndDate.Before(out.StartDate) {
		return out, fmt.Errorf("%s: end_date precedes start_date", out.ID)
	}
	if c.CreatedAt != "" {
		if out.CreatedAt, err = parseDate(c.CreatedAt); err != nil {
			return out, fmt.Errorf("%s created_at: %w", out.ID, err)
		}
	}
	if c.UpdatedAt != "" {
		if out.UpdatedAt, err = parseDate(c.UpdatedAt); err != nil {
			return out, fmt.Errorf("%s updated_at: %w", out.ID, err)
		}
	}
	return out, nil
}

func (inv bundleInvoice) toDomain() (domain.Invoice, error) {
	out := domain.Invoice{
		ID:         strings.TrimSpace(inv.ID),
		ContractID: strings.TrimSpace(inv.ContractID),
		CustomerID: strings.TrimSpace(inv.CustomerID),
		Amount:     inv.Amount,
		Status:     domain.InvoiceStatus(inv.Status),
		LineItems:  inv.LineItems,
	}
	if out.ID == "" || out.ContractID == "" {
		return out, fmt.Errorf("id and contract_id are required")
	}
	if !out.Status.Valid() {
		return out, fmt.Errorf("%s: unknown status %q", out.ID, inv.Status)
	}

	var err error
	if out.Currency, err = normalizeCurrency(inv.Currency); err != nil {
		return out, fmt.Errorf("%s: %w", out.ID, err)
	}
	if out.DueDate, err = parseDate(inv.DueDate); err != nil {
		return out, fmt.Errorf("%s due_date: %w", out.ID, err)
	}
	if out.CreatedAt, err = parseDate(inv.CreatedAt); err != nil {
		return out, fmt.Errorf("%s created_at: %w", out.ID, err)
	}
	if inv.PaidDate != "" {
		paid, err := parseDate(inv.PaidDate)
		if err != nil {
			return out, fmt.Errorf("%s paid_date: %w", out.ID, err)
		}
		out.PaidDate = &paid
	}
	return out, nil
}

func (s bundleSubscript) toDomain() (domain.Subscription, error) {
	out := domain.Subscription{
		ID:          strings.TrimSpace(s.ID),
		ContractID:  strings.TrimSpace(s.ContractID),
		CustomerID:  strings.TrimSpace(s.CustomerID),
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Quantity:    s.Quantity,
		UnitPrice:   s.UnitPrice,
		TotalPrice:  s.TotalPrice,
		UsageAmount: s.UsageAmount,
		UsageLimit:  s.UsageLimit,
		Status:      domain.SubscriptionStatus(s.Status),
	}
	if out.ID == "" || out.ContractID == "" {
		return out, fmt.Errorf("id and contract_id are required")
	}
	if !out.Status.Valid() {
		return out, fmt.Errorf("%s: unknown status %q", out.ID, s.Status)
	}

	var err error
	if out.StartDate, err = parseDate(s.StartDate); err != nil {
		return out, fmt.Errorf("%s start_date: %w", out.ID, err)
	}
	if out.EndDate, err = parseDate(s.EndDate); err != nil {
		return out, fmt.Errorf("%s end_date: %w", out.ID, err)
	}
	return out, nil
}

// parseDate accepts a plain date or an RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// normalizeCurrency upper-cases the code and rejects currencies that cannot
// be converted for reporting. An empty code defaults to USD.
func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD", nil
	}
	if _, err := currency.Rate(code); err != nil {
		return "", err
	}
	return code, nil
}
