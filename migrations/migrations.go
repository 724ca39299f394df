// Package migrations embeds the schema migrations for every supported
// database dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Direction selects which half of each migration is applied
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Execer is satisfied by *sql.DB, *sqlx.DB and transactions
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Files returns the migration file names for a dialect and direction, in
// the order they must be applied.
func Files(dialect string, direction Direction) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("invalid migration direction %q", direction)
	}

	pattern := fmt.Sprintf("%s/*.%s.sql", dialect, direction)
	names, err := fs.Glob(files, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s migrations for dialect %q", direction, dialect)
	}

	sort.Strings(names)
	if direction == Down {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}

	return names, nil
}

// Apply runs every migration of the given dialect in direction order.
// Each file is split into single statements so drivers that reject
// multi-statement Exec calls work too.
func Apply(ctx context.Context, db Execer, dialect string, direction Direction) ([]string, error) {
	names, err := Files(dialect, direction)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		for _, stmt := range Statements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("migration %s failed: %w", name, err)
			}
		}
	}

	return names, nil
}

// Statements splits a migration script on statement terminators
func Statements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
