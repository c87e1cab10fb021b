package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wakala/renewal-analytics/internal/domain"
)

var invoiceCSVColumns = []string{
	"invoice_id", "contract_id", "customer_id", "amount", "currency",
	"due_date", "paid_date", "status", "created_at",
}

// ParseInvoicesCSV parses the csv_invoices export format. Columns are
// matched by header name, so their order is free.
//
// Expected header:
//
//	invoice_id,contract_id,customer_id,amount,currency,due_date,paid_date,status,created_at
func ParseInvoicesCSV(data []byte) ([]domain.Invoice, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range invoiceCSVColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var invoices []domain.Invoice
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		field := func(name string) string {
			return strings.TrimSpace(row[col[name]])
		}

		amount, err := strconv.ParseFloat(field("amount"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}

		raw := bundleInvoice{
			ID:         field("invoice_id"),
			ContractID: field("contract_id"),
			CustomerID: field("customer_id"),
			Amount:     amount,
			Currency:   field("currency"),
			DueDate:    field("due_date"),
			PaidDate:   field("paid_date"),
			Status:     strings.ToLower(field("status")),
			CreatedAt:  field("created_at"),
		}
		inv, err := raw.toDomain()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		invoices = append(invoices, inv)
	}

	return invoices, nil
}
