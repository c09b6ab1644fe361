package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// SchemaValidator checks that migrations produced the expected schema
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every check
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range []string{"matches", "schema_migrations"} {
		exists, err := v.objectExists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies the matches columns and their declared types
func (v *SchemaValidator) ValidateTableStructure() error {
	expected := map[string]string{
		"id":         "TEXT",
		"peer_a":     "TEXT",
		"peer_b":     "TEXT",
		"mode_a":     "TEXT",
		"mode_b":     "TEXT",
		"started_at": "DATETIME",
		"ended_at":   "DATETIME",
		"end_reason": "TEXT",
	}

	rows, err := v.db.Query("PRAGMA table_info(matches)")
	if err != nil {
		return fmt.Errorf("failed to read matches table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		found[name] = strings.ToUpper(colType)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, colType := range expected {
		got, ok := found[column]
		if !ok {
			return fmt.Errorf("matches table structure invalid: missing column %s", column)
		}
		if got != colType {
			return fmt.Errorf("matches table structure invalid: column %s has type %s, want %s", column, got, colType)
		}
	}

	return nil
}

// ValidateIndexes verifies that the lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range []string{"idx_matches_started_at", "idx_matches_ended_at"} {
		exists, err := v.objectExists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

func (v *SchemaValidator) objectExists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
