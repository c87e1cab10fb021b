package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/wakala/renewal-analytics/internal/currency"
	"github.com/wakala/renewal-analytics/internal/domain"
)

// Invoices created within this window go to invoices.csv, older ones to the
// bundle, so seeding exercises both export formats.
const recentWindowDays = 90

type product struct {
	id        string
	name      string
	unitPrice float64 // USD
	metered   bool
}

var products = []product{
	{"PRD-SEATS", "Platform seats", 45, false},
	{"PRD-API", "API calls (thousands)", 2.5, true},
	{"PRD-STORAGE", "Storage (GB)", 0.8, true},
	{"PRD-SUPPORT", "Premium support", 400, false},
}

var customerNames = []string{
	"Acme Logistics", "Baobab Health", "Cedar Retail", "Delta Freight", "Equator Bank",
	"Falcon Media", "Granite Insurance", "Harbor Foods", "Indigo Travel", "Jacaranda Energy",
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	// Dates are generated relative to today so a fresh seed always has
	// renewals coming up; output is identical for a given day.
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	ccys := []string{"USD", "USD", "USD", "EUR", "GBP", "KES", "NGN", "ZAR"}

	var (
		contracts     []domain.Contract
		subscriptions []domain.Subscription
		oldInvoices   []domain.Invoice
		newInvoices   []domain.Invoice
	)

	for i := 1; i <= 40; i++ {
		id := fmt.Sprintf("CTR-%03d", i)
		customerID := fmt.Sprintf("CUST-%03d", (i-1)%len(customerNames)+1)
		ccy := ccys[rng.Intn(len(ccys))]

		start := asOf.AddDate(0, 0, -(30 + rng.Intn(670)))
		renewal := asOf.AddDate(0, 0, -10+rng.Intn(310))
		if renewal.Before(start) {
			renewal = start.AddDate(1, 0, 0)
		}

		c := domain.Contract{
			ID:               id,
			CustomerID:       customerID,
			CustomerName:     customerNames[(i-1)%len(customerNames)],
			ContractNumber:   fmt.Sprintf("CN-%d-%04d", start.Year(), i),
			StartDate:        start,
			EndDate:          renewal,
			RenewalDate:      renewal,
			Currency:         ccy,
			Status:           pickStatus(rng),
			BillingFrequency: pickFrequency(rng),
			AutoRenewal:      rng.Float64() < 0.6,
			CreatedAt:        start,
			UpdatedAt:        asOf,
		}

		subs := generateSubscriptions(rng, c, asOf)
		var annual float64
		for _, s := range subs {
			annual += s.TotalPrice * 12
		}
		c.TotalValue = roundCents(annual)
		// A few large deals so the contract value factor spreads out.
		if rng.Float64() < 0.15 {
			c.TotalValue = roundCents(c.TotalValue * 8)
		}

		for _, inv := range generateInvoices(rng, c, subs, asOf) {
			if asOf.Sub(inv.CreatedAt) <= recentWindowDays*24*time.Hour {
				newInvoices = append(newInvoices, inv)
			} else {
				oldInvoices = append(oldInvoices, inv)
			}
		}

		contracts = append(contracts, c)
		subscriptions = append(subscriptions, subs...)
	}

	bundle := struct {
		ExportedAt    time.Time             `json:"exported_at"`
		Contracts     []domain.Contract     `json:"contracts"`
		Invoices      []domain.Invoice      `json:"invoices"`
		Subscriptions []domain.Subscription `json:"subscriptions"`
	}{asOf, contracts, oldInvoices, subscriptions}

	writeJSONFile(filepath.Join(baseDir, "contracts_bundle.json"), bundle)
	fmt.Printf("Generated %d contracts, %d invoices, %d subscriptions -> contracts_bundle.json\n",
		len(contracts), len(oldInvoices), len(subscriptions))

	writeInvoicesCSV(filepath.Join(baseDir, "invoices.csv"), newInvoices)
	fmt.Printf("Generated %d invoices -> invoices.csv\n", len(newInvoices))

	fmt.Println("Test data generation complete.")
}

func pickStatus(rng *rand.Rand) domain.ContractStatus {
	roll := rng.Float64()
	switch {
	case roll < 0.75:
		return domain.ContractActive
	case roll < 0.85:
		return domain.ContractPending
	case roll < 0.95:
		return domain.ContractExpired
	default:
		return domain.ContractCancelled
	}
}

func pickFrequency(rng *rand.Rand) domain.BillingFrequency {
	roll := rng.Float64()
	switch {
	case roll < 0.6:
		return domain.BillingMonthly
	case roll < 0.85:
		return domain.BillingQuarterly
	case roll < 0.97:
		return domain.BillingAnnually
	default:
		return domain.BillingOneTime
	}
}

func generateSubscriptions(rng *rand.Rand, c domain.Contract, asOf time.Time) []domain.Subscription {
	n := 1 + rng.Intn(3)
	perm := rng.Perm(len(products))

	var subs []domain.Subscription
	for j := 0; j < n; j++ {
		p := products[perm[j]]
		unit, _ := currency.FromUSD(p.unitPrice, c.Currency)
		qty := float64(1 + rng.Intn(50))

		s := domain.Subscription{
			ID:          fmt.Sprintf("SUB-%s-%d", c.ID, j+1),
			ContractID:  c.ID,
			CustomerID:  c.CustomerID,
			ProductID:   p.id,
			ProductName: p.name,
			Quantity:    qty,
			UnitPrice:   unit,
			TotalPrice:  roundCents(unit * qty),
			StartDate:   c.StartDate,
			EndDate:     c.EndDate,
			Status:      domain.SubscriptionActive,
		}
		if s.EndDate.Before(asOf) {
			s.Status = domain.SubscriptionExpired
		}

		if p.metered {
			limit := float64(1000 * (1 + rng.Intn(10)))
			// Usage runs from 40% to 130% of the limit; above 100% is overage.
			used := math.Round(limit * (0.4 + rng.Float64()*0.9))
			s.UsageLimit = &limit
			s.UsageAmount = &used
		}
		subs = append(subs, s)
	}
	return subs
}

func periodMonths(f domain.BillingFrequency) int {
	switch f {
	case domain.BillingQuarterly:
		return 3
	case domain.BillingAnnually:
		return 12
	default:
		return 1
	}
}

func generateInvoices(rng *rand.Rand, c domain.Contract, subs []domain.Subscription, asOf time.Time) []domain.Invoice {
	var monthly, qty float64
	for _, s := range subs {
		monthly += s.TotalPrice
		qty += s.Quantity
	}

	months := periodMonths(c.BillingFrequency)
	periodAmount := roundCents(monthly * float64(months))

	var invoices []domain.Invoice
	// Customers that pay late do so consistently.
	lateRate := 0.1
	if rng.Float64() < 0.25 {
		lateRate = 0.6
	}

	seq := 0
	for created := c.StartDate; !created.After(asOf); created = created.AddDate(0, months, 0) {
		// 8% of periods are never invoiced.
		if rng.Float64() < 0.08 {
			continue
		}
		seq++

		amount := periodAmount
		lineQty := qty
		// 5% under-invoiced: a seat or two missing from the line item.
		if rng.Float64() < 0.05 && lineQty > 2 {
			lineQty -= float64(1 + rng.Intn(2))
			amount = roundCents(periodAmount * lineQty / qty)
		}

		due := created.AddDate(0, 0, 30)
		inv := domain.Invoice{
			ID:         fmt.Sprintf("INV-%s-%03d", c.ID, seq),
			ContractID: c.ID,
			CustomerID: c.CustomerID,
			Amount:     amount,
			Currency:   c.Currency,
			DueDate:    due,
			Status:     domain.InvoiceSent,
			CreatedAt:  created,
			LineItems: []domain.LineItem{{
				Description: "Subscription fees",
				Quantity:    lineQty,
				UnitPrice:   roundCents(amount / lineQty),
				Amount:      amount,
			}},
		}

		switch {
		case due.After(asOf):
			// Not yet due.
		case rng.Float64() < 0.03:
			inv.Status = domain.InvoicePartial
		case rng.Float64() < lateRate:
			daysLate := 5 + rng.Intn(40)
			paid := due.AddDate(0, 0, daysLate)
			if paid.After(asOf) {
				inv.Status = domain.InvoiceOverdue
			} else {
				inv.Status = domain.InvoicePaid
				inv.PaidDate = &paid
			}
		default:
			paid := due.AddDate(0, 0, -rng.Intn(10))
			inv.Status = domain.InvoicePaid
			inv.PaidDate = &paid
		}

		invoices = append(invoices, inv)
		if c.BillingFrequency == domain.BillingOneTime {
			break
		}
	}
	return invoices
}

func writeInvoicesCSV(path string, invoices []domain.Invoice) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{
		"invoice_id", "contract_id", "customer_id", "amount", "currency",
		"due_date", "paid_date", "status", "created_at",
	})
	for _, inv := range invoices {
		paid := ""
		if inv.PaidDate != nil {
			paid = domain.DateLabel(*inv.PaidDate)
		}
		w.Write([]string{
			inv.ID,
			inv.ContractID,
			inv.CustomerID,
			fmt.Sprintf("%.2f", inv.Amount),
			inv.Currency,
			domain.DateLabel(inv.DueDate),
			paid,
			string(inv.Status),
			domain.DateLabel(inv.CreatedAt),
		})
	}
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
