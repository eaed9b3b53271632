package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS movies (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	director TEXT NOT NULL,
	year INTEGER NOT NULL,
	rating DOUBLE PRECISION NOT NULL CHECK (rating >= 0 AND rating <= 5)
)`,
}

// EnsureSchema creates the movies table when it does not exist yet. Production
// deployments manage the schema externally; this exists for local setups.
func EnsureSchema(ctx context.Context, db Adapter) error {
	for _, statement := range schemaStatements {
		if _, err := db.Execute(ctx, statement); err != nil {
			return fmt.Errorf("apply movies schema: %w", err)
		}
	}
	return nil
}
