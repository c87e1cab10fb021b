package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const riskColumns = `id, contract_id, customer_id, risk_type, risk_score, indicators, flagged_at, status`

// RiskRepo is the SQLite-backed renewal risk store. Indicators are stored as
// JSON, so numeric indicator values read back as float64.
type RiskRepo struct {
	db *sql.DB
}

func NewRiskRepo(db *sql.DB) *RiskRepo {
	return &RiskRepo{db: db}
}

func (r *RiskRepo) AppendRisks(risks []domain.RenewalRisk) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO renewal_risks (` + riskColumns + `) VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range risks {
		rk := &risks[i]
		indicators, err := json.Marshal(rk.Indicators)
		if err != nil {
			return fmt.Errorf("encode indicators for %s: %w", rk.ID, err)
		}
		if _, err := stmt.Exec(
			rk.ID, rk.ContractID, rk.CustomerID, string(rk.RiskType), rk.RiskScore,
			string(indicators), formatTime(rk.FlaggedAt), string(rk.Status),
		); err != nil {
			return fmt.Errorf("insert risk %s: %w", rk.ID, err)
		}
	}

	return tx.Commit()
}

func (r *RiskRepo) ListRisks(q domain.RiskQuery) ([]domain.RenewalRisk, error) {
	var clauses []string
	var args []any
	if q.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, q.CustomerID)
	}
	if q.ContractID != "" {
		clauses = append(clauses, "contract_id = ?")
		args = append(args, q.ContractID)
	}
	if q.RiskType != "" {
		clauses = append(clauses, "risk_type = ?")
		args = append(args, string(q.RiskType))
	}
	if q.ActiveOnly {
		clauses = append(clauses, "status != ?")
		args = append(args, string(domain.RiskStatusResolved))
	}

	rows, err := r.db.Query(
		"SELECT "+riskColumns+" FROM renewal_risks"+whereClause(clauses)+" ORDER BY rowid",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRisks(rows)
}

func (r *RiskRepo) UpdateRiskStatus(id string, status domain.RiskStatus) (bool, error) {
	res, err := r.db.Exec("UPDATE renewal_risks SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return false, fmt.Errorf("update risk %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanRisks(rows *sql.Rows) ([]domain.RenewalRisk, error) {
	risks := []domain.RenewalRisk{}
	for rows.Next() {
		var rk domain.RenewalRisk
		var rtype, indicators, flaggedAt, status string

		err := rows.Scan(
			&rk.ID, &rk.ContractID, &rk.CustomerID, &rtype, &rk.RiskScore,
			&indicators, &flaggedAt, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}

		rk.RiskType = domain.RiskType(rtype)
		rk.Status = domain.RiskStatus(status)
		rk.FlaggedAt = parseTime(flaggedAt)
		if err := json.Unmarshal([]byte(indicators), &rk.Indicators); err != nil {
			return nil, fmt.Errorf("decode indicators for %s: %w", rk.ID, err)
		}

		risks = append(risks, rk)
	}
	return risks, rows.Err()
}
