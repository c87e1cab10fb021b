package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const invoiceColumns = `id, contract_id, customer_id, amount, currency, due_date, paid_date,
	status, line_items, created_at`

type InvoiceRepo struct {
	db *sql.DB
}

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

// BulkUpsert writes invoices, replacing stored copies so status changes
// (sent to paid, paid to void) from later exports are picked up.
func (r *InvoiceRepo) BulkUpsert(invoices []domain.Invoice) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO invoices (` + invoiceColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for i := range invoices {
		inv := &invoices[i]
		items := inv.LineItems
		if items == nil {
			items = []domain.LineItem{}
		}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return written, fmt.Errorf("encode line items for %s: %w", inv.ID, err)
		}

		res, err := stmt.Exec(
			inv.ID, inv.ContractID, inv.CustomerID, inv.Amount, inv.Currency,
			formatTime(inv.DueDate), formatNullableTime(inv.PaidDate), string(inv.Status),
			string(itemsJSON), formatTime(inv.CreatedAt),
		)
		if err != nil {
			return written, fmt.Errorf("upsert invoice %s: %w", inv.ID, err)
		}
		ra, _ := res.RowsAffected()
		written += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (r *InvoiceRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM invoices").Scan(&count)
	return count, err
}

// ListByContract returns a contract's invoices, newest first. The quantity
// mismatch rule treats the first entry as the latest invoice.
func (r *InvoiceRepo) ListByContract(contractID string) ([]domain.Invoice, error) {
	rows, err := r.db.Query(
		"SELECT "+invoiceColumns+" FROM invoices WHERE contract_id = ? ORDER BY created_at DESC, id",
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// All returns every invoice, newest first.
func (r *InvoiceRepo) All() ([]domain.Invoice, error) {
	rows, err := r.db.Query("SELECT " + invoiceColumns + " FROM invoices ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// OutstandingByCurrency is the unpaid, non-void invoice total per currency.
type OutstandingByCurrency struct {
	Currency string  `json:"currency"`
	Overdue  float64 `json:"overdue"`
	Open     float64 `json:"open"`
}

func (r *InvoiceRepo) GetOutstandingByCurrency() ([]OutstandingByCurrency, error) {
	rows, err := r.db.Query(`
		SELECT currency,
			COALESCE(SUM(CASE WHEN status = 'overdue' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('sent','partial','overdue') THEN amount ELSE 0 END), 0)
		FROM invoices GROUP BY currency ORDER BY currency
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OutstandingByCurrency
	for rows.Next() {
		var o OutstandingByCurrency
		if err := rows.Scan(&o.Currency, &o.Overdue, &o.Open); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanInvoices(rows *sql.Rows) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var status, due, created, items string
		var paid sql.NullString

		err := rows.Scan(
			&inv.ID, &inv.ContractID, &inv.CustomerID, &inv.Amount, &inv.Currency,
			&due, &paid, &status, &items, &created,
		)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}

		inv.Status = domain.InvoiceStatus(status)
		inv.DueDate = parseTime(due)
		inv.CreatedAt = parseTime(created)
		if paid.Valid {
			t := parseTime(paid.String)
			inv.PaidDate = &t
		}
		if err := json.Unmarshal([]byte(items), &inv.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items for %s: %w", inv.ID, err)
		}

		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
