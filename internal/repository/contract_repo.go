package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const contractColumns = `id, customer_id, customer_name, contract_number, start_date, end_date,
	renewal_date, total_value, currency, status, billing_frequency, auto_renewal, terms,
	created_at, updated_at`

type ContractRepo struct {
	db *sql.DB
}

func NewContractRepo(db *sql.DB) *ContractRepo {
	return &ContractRepo{db: db}
}

// BulkUpsert writes contracts, replacing any stored copy with the same ID.
// Contract terms change between syncs, so the latest export wins.
func (r *ContractRepo) BulkUpsert(contracts []domain.Contract) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO contracts (` + contractColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for i := range contracts {
		c := &contracts[i]
		res, err := stmt.Exec(
			c.ID, c.CustomerID, c.CustomerName, c.ContractNumber,
			formatTime(c.StartDate), formatTime(c.EndDate), formatTime(c.RenewalDate),
			c.TotalValue, c.Currency, string(c.Status), string(c.BillingFrequency),
			boolToInt(c.AutoRenewal), c.Terms, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		)
		if err != nil {
			return written, fmt.Errorf("upsert contract %s: %w", c.ID, err)
		}
		ra, _ := res.RowsAffected()
		written += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (r *ContractRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM contracts").Scan(&count)
	return count, err
}

func (r *ContractRepo) GetByID(id string) (*domain.Contract, error) {
	rows, err := r.db.Query("SELECT "+contractColumns+" FROM contracts WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	contracts, err := scanContracts(rows)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}
	return &contracts[0], nil
}

// All returns every contract ordered by renewal date, soonest first.
func (r *ContractRepo) All() ([]domain.Contract, error) {
	rows, err := r.db.Query("SELECT " + contractColumns + " FROM contracts ORDER BY renewal_date, id")
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

type ContractFilter struct {
	CustomerID string
	Status     string
	Page       int
	Limit      int
}

func (r *ContractRepo) List(f ContractFilter) ([]domain.Contract, int, error) {
	var clauses []string
	var args []any
	if f.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	where := whereClause(clauses)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM contracts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + contractColumns + " FROM contracts" + where + " ORDER BY renewal_date, id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	contracts, err := scanContracts(rows)
	return contracts, total, err
}

func scanContracts(rows *sql.Rows) ([]domain.Contract, error) {
	var contracts []domain.Contract
	for rows.Next() {
		var c domain.Contract
		var status, freq, start, end, renewal, created, updated string
		var autoRenewal int

		err := rows.Scan(
			&c.ID, &c.CustomerID, &c.CustomerName, &c.ContractNumber,
			&start, &end, &renewal, &c.TotalValue, &c.Currency, &status, &freq,
			&autoRenewal, &c.Terms, &created, &updated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}

		c.Status = domain.ContractStatus(status)
		c.BillingFrequency = domain.BillingFrequency(freq)
		c.AutoRenewal = autoRenewal != 0
		c.StartDate = parseTime(start)
		c.EndDate = parseTime(end)
		c.RenewalDate = parseTime(renewal)
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)

		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
