package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"expensehq.app/web/core/db"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the reference schema: tables, views, the create_organization
// procedure and the row level security policies the application relies on.
func Schema() string {
	return schemaSQL
}

// Migrate applies the reference schema. Every statement is idempotent.
func Migrate(ctx context.Context, database *db.DB) error {
	if err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
