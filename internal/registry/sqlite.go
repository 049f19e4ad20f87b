package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Company is a row of the approved staffing company register.
type Company struct {
	NormalizedName string    `db:"normalized_name"`
	Name           string    `db:"name"`
	OrgNumber      string    `db:"org_number"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// SQLiteLookup reads approval status from a local mirror of the register.
type SQLiteLookup struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLiteLookup(db *sqlx.DB) *SQLiteLookup {
	return &SQLiteLookup{db: db, now: time.Now}
}

// Lookup matches on the normalized company name.
func (r *SQLiteLookup) Lookup(ctx context.Context, companyName string) (bool, error) {
	normalized := NormalizeCompanyName(companyName)
	if normalized == "" {
		return false, nil
	}

	var count int
	query := `SELECT COUNT(1) FROM approved_staffing_companies WHERE normalized_name = ?`
	if err := r.db.GetContext(ctx, &count, query, normalized); err != nil {
		return false, &LookupError{Company: companyName, Err: err}
	}
	return count > 0, nil
}

// Import upserts companies into the register mirror in one transaction and
// returns the number of rows written. Entries with a blank name are skipped.
func (r *SQLiteLookup) Import(ctx context.Context, companies []Company) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}

	query := `
		INSERT INTO approved_staffing_companies (normalized_name, name, org_number, updated_at)
		VALUES (:normalized_name, :name, :org_number, :updated_at)
		ON CONFLICT(normalized_name) DO UPDATE SET
			name = excluded.name,
			org_number = excluded.org_number,
			updated_at = excluded.updated_at
	`

	now := r.now().UTC()
	written := 0
	for _, c := range companies {
		c.NormalizedName = NormalizeCompanyName(c.Name)
		if c.NormalizedName == "" {
			continue
		}
		c.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, c); err != nil {
			return 0, errors.Join(fmt.Errorf("failed to import %q: %w", c.Name, err), tx.Rollback())
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return written, nil
}

// List returns every register entry ordered by name.
func (r *SQLiteLookup) List(ctx context.Context) ([]Company, error) {
	var companies []Company
	query := `SELECT normalized_name, name, org_number, updated_at FROM approved_staffing_companies ORDER BY name`
	if err := r.db.SelectContext(ctx, &companies, query); err != nil {
		return nil, fmt.Errorf("failed to list register: %w", err)
	}
	return companies, nil
}
