package store

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const findingsSchema = `
CREATE TABLE IF NOT EXISTS findings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT,
    host TEXT,
    vulnerability TEXT,
    severity TEXT,
    confidence REAL,
    date TEXT,
    status TEXT
)`

const chainsSchema = `
CREATE TABLE IF NOT EXISTS chains (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT,
    host TEXT,
    name TEXT,
    description TEXT,
    finding_ids TEXT,
    original_severities TEXT,
    combined_severity TEXT,
    technical_details TEXT,
    business_impact TEXT,
    evidence_requirements TEXT,
    attack_path TEXT,
    date_identified TEXT
)`

// roiColumns are schema additions applied after the base tables; adding a
// column that already exists is a no-op, any other failure is surfaced.
var roiColumns = []string{
	"ALTER TABLE findings ADD COLUMN time_spent REAL",
	"ALTER TABLE findings ADD COLUMN payout REAL",
	"ALTER TABLE findings ADD COLUMN hourly_rate REAL",
}

func migrate(db *sqlx.DB) error {
	if _, err := db.Exec(findingsSchema); err != nil {
		return fmt.Errorf("create findings table: %w", err)
	}
	if _, err := db.Exec(chainsSchema); err != nil {
		return fmt.Errorf("create chains table: %w", err)
	}
	for _, stmt := range roiColumns {
		if _, err := db.Exec(stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("add roi column: %w", err)
		}
	}
	return nil
}

// isDuplicateColumn matches sqlite's "duplicate column name" error. Only
// this failure is tolerated during migration; genuine schema or storage
// failures still abort.
func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
