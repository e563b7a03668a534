package telemetry

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names registered by the imported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations.sql
var migrations string

// DetectDriver picks the database driver for a DSN: postgres URLs and
// key=value connection strings use lib/pq, anything else is a sqlite path.
func DetectDriver(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	if strings.Contains(trimmed, "host=") || strings.Contains(trimmed, "dbname=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// SQLSink stores events in a telemetry_events table.
type SQLSink struct {
	db     *sql.DB
	driver string
}

// OpenSQLSink opens the database behind dsn and applies the embedded
// migration.
func OpenSQLSink(ctx context.Context, dsn string) (*SQLSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("telemetry: sql sink dsn is required")
	}
	driver := DetectDriver(dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: migrate: %w", err)
	}
	return &SQLSink{db: db, driver: driver}, nil
}

// Driver reports which database driver backs the sink.
func (s *SQLSink) Driver() string { return s.driver }

func (s *SQLSink) Write(ctx context.Context, event Event) error {
	fields, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("telemetry: encode fields: %w", err)
	}
	query := "INSERT INTO telemetry_events (id, name, fields, recorded_at) VALUES (?, ?, ?, ?)"
	if s.driver == DriverPostgres {
		query = "INSERT INTO telemetry_events (id, name, fields, recorded_at) VALUES ($1, $2, $3, $4)"
	}
	if _, err := s.db.ExecContext(ctx, query, event.ID, event.Name, string(fields), event.Time.UTC()); err != nil {
		return fmt.Errorf("telemetry: insert %s: %w", event.Name, err)
	}
	return nil
}

// Counts aggregates stored events by name.
func (s *SQLSink) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, COUNT(*) FROM telemetry_events GROUP BY name")
	if err != nil {
		return nil, fmt.Errorf("telemetry: count events: %w", err)
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("telemetry: scan count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// TierCounts aggregates result_viewed events by tier.
func (s *SQLSink) TierCounts(ctx context.Context) (map[string]int, error) {
	query := "SELECT fields FROM telemetry_events WHERE name = ?"
	if s.driver == DriverPostgres {
		query = "SELECT fields FROM telemetry_events WHERE name = $1"
	}
	rows, err := s.db.QueryContext(ctx, query, EventResultViewed)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query results: %w", err)
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("telemetry: scan result: %w", err)
		}
		var fields map[string]string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			continue
		}
		counts[fields["tier"]]++
	}
	return counts, rows.Err()
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}
