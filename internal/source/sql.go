package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"salesdash/internal/engine"
)

// DefaultSQLQuery must return entity, group, period, quantity, unit value in that order.
const DefaultSQLQuery = `SELECT country, continent, year, pop, gdpPercap FROM gapminder ORDER BY country, year`

// driverFor maps a source URL onto a database/sql driver name and DSN.
func driverFor(rawURL string) (driver, dsn string, err error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedSource, rawURL)
	}
	switch strings.ToLower(scheme) {
	case "sqlite":
		return "sqlite", rest, nil
	case "postgres", "postgresql":
		return "pgx", rawURL, nil
	case "mysql":
		return "mysql", rest, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedSource, scheme)
}

// LoadSQL runs query (DefaultSQLQuery when empty) and builds a dataset from its rows.
// Row order is whatever the query returns, so queries should carry an ORDER BY.
func LoadSQL(ctx context.Context, rawURL, query string) (*engine.Dataset, error) {
	driver, dsn, err := driverFor(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		query = DefaultSQLQuery
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return queryDataset(ctx, db, query)
}

func queryDataset(ctx context.Context, db *sql.DB, query string) (*engine.Dataset, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(cols) != 5 {
		return nil, fmt.Errorf("%w: query returned %d columns, want 5", engine.ErrMissingColumn, len(cols))
	}

	b := engine.NewBuilder(1024)
	for rows.Next() {
		var (
			entity, group       string
			period              int32
			quantity, unitValue float64
		)
		if err := rows.Scan(&entity, &group, &period, &quantity, &unitValue); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := b.Add(entity, group, period, quantity, unitValue); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return b.Build()
}
