package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const scoreColumns = `contract_id, customer_id, score, risk_level, factors, recommendations, calculated_at`

// ScoreRepo keeps the latest health score per contract.
type ScoreRepo struct {
	db *sql.DB
}

func NewScoreRepo(db *sql.DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// SaveAll replaces the stored score of each contract in scores.
func (r *ScoreRepo) SaveAll(scores []domain.RenewalHealthScore) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO health_scores (` + scoreColumns + `) VALUES (?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range scores {
		s := &scores[i]
		factors, err := json.Marshal(s.Factors)
		if err != nil {
			return fmt.Errorf("encode factors for %s: %w", s.ContractID, err)
		}
		recs, err := json.Marshal(s.Recommendations)
		if err != nil {
			return fmt.Errorf("encode recommendations for %s: %w", s.ContractID, err)
		}
		if _, err := stmt.Exec(
			s.ContractID, s.CustomerID, s.Score, string(s.RiskLevel),
			string(factors), string(recs), formatTime(s.CalculatedAt),
		); err != nil {
			return fmt.Errorf("save score %s: %w", s.ContractID, err)
		}
	}

	return tx.Commit()
}

func (r *ScoreRepo) GetByContract(contractID string) (*domain.RenewalHealthScore, error) {
	rows, err := r.db.Query("SELECT "+scoreColumns+" FROM health_scores WHERE contract_id = ?", contractID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	scores, err := scanScores(rows)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("health score for %s: %w", contractID, ErrNotFound)
	}
	return &scores[0], nil
}

// ListByRiskLevel returns stored scores, lowest first. An empty level
// returns all of them.
func (r *ScoreRepo) ListByRiskLevel(level string) ([]domain.RenewalHealthScore, error) {
	var clauses []string
	var args []any
	if level != "" {
		clauses = append(clauses, "risk_level = ?")
		args = append(args, level)
	}

	rows, err := r.db.Query(
		"SELECT "+scoreColumns+" FROM health_scores"+whereClause(clauses)+" ORDER BY score, contract_id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

type ScoreSummary struct {
	Count        int            `json:"count"`
	AverageScore float64        `json:"average_score"`
	ByRiskLevel  map[string]int `json:"by_risk_level"`
}

func (r *ScoreRepo) GetSummary() (*ScoreSummary, error) {
	s := &ScoreSummary{ByRiskLevel: make(map[string]int)}
	if err := r.db.QueryRow(
		"SELECT COUNT(*), COALESCE(AVG(score), 0) FROM health_scores",
	).Scan(&s.Count, &s.AverageScore); err != nil {
		return nil, err
	}
	if err := scanGroupCount(r.db, "health_scores", "risk_level", s.ByRiskLevel); err != nil {
		return nil, err
	}
	return s, nil
}

func scanScores(rows *sql.Rows) ([]domain.RenewalHealthScore, error) {
	var scores []domain.RenewalHealthScore
	for rows.Next() {
		var s domain.RenewalHealthScore
		var level, factors, recs, calculated string

		if err := rows.Scan(&s.ContractID, &s.CustomerID, &s.Score, &level,
			&factors, &recs, &calculated); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}

		s.RiskLevel = domain.RiskLevel(level)
		s.CalculatedAt = parseTime(calculated)
		if err := json.Unmarshal([]byte(factors), &s.Factors); err != nil {
			return nil, fmt.Errorf("decode factors for %s: %w", s.ContractID, err)
		}
		if err := json.Unmarshal([]byte(recs), &s.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations for %s: %w", s.ContractID, err)
		}

		scores = append(scores, s)
	}
	return scores, rows.Err()
}
