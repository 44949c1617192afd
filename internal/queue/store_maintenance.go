package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"reelforge/internal/jobgraph"
)

var expectedTables = []string{"schema_version", "jobs", "work_units", "callbacks", "events"}

// Stats returns a count of units across all jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[jobgraph.Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_units GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[jobgraph.Status]int)
	for rows.Next() {
		var status jobgraph.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// CheckHealth probes the queue database file and its contents. The error is
// non-nil only when a probe could not run at all.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	probeCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()
	fail := func(step string, err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, fmt.Errorf("%s: %w", step, err)
	}

	if err := s.db.PingContext(probeCtx); err != nil {
		return fail("ping queue database", err)
	}
	health.DatabaseReadable = true

	present, err := s.tableNames(probeCtx)
	if err != nil {
		return fail("list tables", err)
	}
	for _, table := range expectedTables {
		if _, ok := present[table]; ok {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	if len(health.MissingTables) == 0 {
		if health.SchemaVersion, err = s.readSchemaVersion(probeCtx, s.db); err != nil {
			return fail("read schema version", err)
		}
		if err := s.db.QueryRowContext(probeCtx, `SELECT COUNT(1) FROM jobs`).Scan(&health.TotalJobs); err != nil {
			return fail("count jobs", err)
		}
	}

	var verdict string
	if err := s.db.QueryRowContext(probeCtx, `PRAGMA integrity_check`).Scan(&verdict); err != nil {
		return fail("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(verdict, "ok")
	return health, nil
}

func (s *Store) tableNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}
