package repository

import (
	"database/sql"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const subscriptionColumns = `id, contract_id, customer_id, product_id, product_name, quantity,
	unit_price, total_price, usage_amount, usage_limit, start_date, end_date, status`

type SubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) BulkUpsert(subs []domain.Subscription) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for i := range subs {
		s := &subs[i]
		res, err := stmt.Exec(
			s.ID, s.ContractID, s.CustomerID, s.ProductID, s.ProductName,
			s.Quantity, s.UnitPrice, s.TotalPrice,
			nullableFloat(s.UsageAmount), nullableFloat(s.UsageLimit),
			formatTime(s.StartDate), formatTime(s.EndDate), string(s.Status),
		)
		if err != nil {
			return written, fmt.Errorf("upsert subscription %s: %w", s.ID, err)
		}
		ra, _ := res.RowsAffected()
		written += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (r *SubscriptionRepo) ListByContract(contractID string) ([]domain.Subscription, error) {
	rows, err := r.db.Query(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE contract_id = ? ORDER BY start_date, id",
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *SubscriptionRepo) All() ([]domain.Subscription, error) {
	rows, err := r.db.Query("SELECT " + subscriptionColumns + " FROM subscriptions ORDER BY start_date, id")
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		var status, start, end string
		var usageAmount, usageLimit sql.NullFloat64

		err := rows.Scan(
			&s.ID, &s.ContractID, &s.CustomerID, &s.ProductID, &s.ProductName,
			&s.Quantity, &s.UnitPrice, &s.TotalPrice, &usageAmount, &usageLimit,
			&start, &end, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}

		s.Status = domain.SubscriptionStatus(status)
		s.StartDate = parseTime(start)
		s.EndDate = parseTime(end)
		if usageAmount.Valid {
			v := usageAmount.Float64
			s.UsageAmount = &v
		}
		if usageLimit.Valid {
			v := usageLimit.Float64
			s.UsageLimit = &v
		}

		subs = append(subs, s)
	}
	return subs, rows.Err()
}
