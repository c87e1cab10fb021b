package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Each new connection to ":memory:" is a separate database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contracts (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			contract_number TEXT NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			renewal_date DATETIME NOT NULL,
			total_value REAL NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			billing_frequency TEXT NOT NULL,
			auto_renewal INTEGER NOT NULL,
			terms TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_customer ON contracts(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			due_date DATETIME NOT NULL,
			paid_date DATETIME,
			status TEXT NOT NULL,
			line_items TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_contract ON invoices(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity REAL NOT NULL,
			unit_price REAL NOT NULL,
			total_price REAL NOT NULL,
			usage_amount REAL,
			usage_limit REAL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_contract ON subscriptions(contract_id)`,

		`CREATE TABLE IF NOT EXISTS health_scores (
			contract_id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			risk_level TEXT NOT NULL,
			factors TEXT NOT NULL,
			recommendations TEXT NOT NULL,
			calculated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_scores_risk_level ON health_scores(risk_level)`,

		`CREATE TABLE IF NOT EXISTS underbilling_alerts (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			type TEXT NOT NULL,
			expected_amount REAL NOT NULL,
			actual_amount REAL NOT NULL,
			difference REAL NOT NULL,
			period TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			detected_at DATETIME NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_contract ON underbilling_alerts(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_customer ON underbilling_alerts(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON underbilling_alerts(resolved)`,

		`CREATE TABLE IF NOT EXISTS renewal_risks (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			risk_type TEXT NOT NULL,
			risk_score REAL NOT NULL,
			indicators TEXT NOT NULL,
			flagged_at DATETIME NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_risks_contract ON renewal_risks(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_risks_customer ON renewal_risks(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_risks_status ON renewal_risks(status)`,

		`CREATE TABLE IF NOT EXISTS ingested_files (
			id TEXT PRIMARY KEY,
			format TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}

// --- shared helpers ---

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanGroupCount fills m with COUNT(*) per distinct value of col in table.
func scanGroupCount(db *sql.DB, table, col string, m map[string]int) error {
	rows, err := db.Query(
		"SELECT " + col + ", COUNT(*) FROM " + table + " GROUP BY " + col,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		m[k] = v
	}
	return rows.Err()
}
