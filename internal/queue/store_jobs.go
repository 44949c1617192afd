package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reelforge/internal/jobgraph"
)

// Submit stores a built graph. The graph is validated first so a malformed
// job never reaches workers.
func (s *Store) Submit(ctx context.Context, graph *jobgraph.Graph) (*Job, error) {
	if graph == nil {
		return nil, errors.New("graph is nil")
	}
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job graph: %w", err)
	}
	jobData, err := jobgraph.EncodeJob(graph.Job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, graph.Job.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check job id: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrJobExists, graph.Job.ID)
		}

		timestamp := nowString()
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO jobs (id, name, package_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			graph.Job.ID,
			graph.Job.Name,
			string(jobData),
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		for position, unit := range graph.Units {
			pkg, err := encodeMap(unit.Package)
			if err != nil {
				return fmt.Errorf("encode package of %q: %w", unit.Name, err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO work_units (job_id, name, kind, position, status, package_json, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				graph.Job.ID,
				unit.Name,
				unit.Kind,
				position,
				unit.Status,
				pkg,
				timestamp,
				timestamp,
			); err != nil {
				return fmt.Errorf("insert unit %q: %w", unit.Name, err)
			}
		}

		for position, cb := range graph.Callbacks {
			units, err := json.Marshal(cb.Units)
			if err != nil {
				return fmt.Errorf("encode callback units: %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO callbacks (job_id, position, trigger_expr, action, units_json) VALUES (?, ?, ?, ?, ?)`,
				graph.Job.ID,
				position,
				cb.Trigger.String(),
				string(cb.Action),
				string(units),
			); err != nil {
				return fmt.Errorf("insert callback: %w", err)
			}
		}

		return recordEvent(ctx, tx, graph.Job.ID, "", EventSubmitted, "", fmt.Sprintf("%d units", len(graph.Units)))
	})
	if err != nil {
		return nil, err
	}
	return s.Job(ctx, graph.Job.ID)
}

// Job fetches a job with its derived status.
func (s *Store) Job(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT id, name, package_json, created_at, updated_at FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	counts, err := s.unitCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Counts = counts
	job.Status = deriveJobStatus(counts)
	return job, nil
}

// Jobs lists every job in submission order.
func (s *Store) Jobs(ctx context.Context) ([]Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, package_json, created_at, updated_at FROM jobs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range jobs {
		counts, err := s.unitCounts(ctx, jobs[i].ID)
		if err != nil {
			return nil, err
		}
		jobs[i].Counts = counts
		jobs[i].Status = deriveJobStatus(counts)
	}
	return jobs, nil
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id          string
		name        string
		packageJSON string
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(&id, &name, &packageJSON, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	pkg, err := jobgraph.DecodeJob([]byte(packageJSON))
	if err != nil {
		return nil, err
	}
	job := &Job{ID: id, Name: name, Package: pkg}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func (s *Store) unitCounts(ctx context.Context, jobID string) (map[jobgraph.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_units WHERE job_id = ? GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("count units: %w", err)
	}
	defer rows.Close()

	counts := make(map[jobgraph.Status]int)
	for rows.Next() {
		var status jobgraph.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Callbacks lists the stored callbacks of a job in graph order.
func (s *Store) Callbacks(ctx context.Context, jobID string) ([]CallbackRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, trigger_expr, action, units_json, fired_at FROM callbacks WHERE job_id = ? ORDER BY position`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list callbacks: %w", err)
	}
	defer rows.Close()
	return scanCallbacks(rows)
}

func scanCallbacks(rows *sql.Rows) ([]CallbackRecord, error) {
	var records []CallbackRecord
	for rows.Next() {
		var (
			record   CallbackRecord
			expr     string
			action   string
			units    string
			firedRaw sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.JobID, &expr, &action, &units, &firedRaw); err != nil {
			return nil, fmt.Errorf("scan callback: %w", err)
		}
		trigger, err := jobgraph.ParseTrigger(expr)
		if err != nil {
			return nil, fmt.Errorf("callback %d: %w", record.ID, err)
		}
		parsedAction, err := jobgraph.ParseAction(action)
		if err != nil {
			return nil, fmt.Errorf("callback %d: %w", record.ID, err)
		}
		record.Callback = jobgraph.Callback{Trigger: trigger, Action: parsedAction}
		if err := json.Unmarshal([]byte(units), &record.Callback.Units); err != nil {
			return nil, fmt.Errorf("callback %d units: %w", record.ID, err)
		}
		if firedRaw.Valid {
			if fired, err := parseTimeString(firedRaw.String); err == nil {
				record.FiredAt = &fired
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Events returns the history of a job, oldest first.
func (s *Store) Events(ctx context.Context, jobID string) ([]Event, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, unit_name, event_type, worker_id, message, created_at FROM events WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event      Event
			unit       sql.NullString
			workerID   sql.NullString
			message    sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.JobID, &unit, &event.Type, &workerID, &message, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Unit = unit.String
		event.WorkerID = workerID.String
		event.Message = message.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			event.CreatedAt = created
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// RemoveJob deletes a job with its units, callbacks and history.
func (s *Store) RemoveJob(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteJobs(ctx, tx, id)
	})
}

// ClearCompleted removes every job whose units all completed and returns how
// many jobs were removed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		removed = 0
		rows, err := tx.QueryContext(
			ctx,
			`SELECT j.id FROM jobs j
             WHERE NOT EXISTS (SELECT 1 FROM work_units w WHERE w.job_id = j.id AND w.status != ?)`,
			jobgraph.StatusComplete,
		)
		if err != nil {
			return fmt.Errorf("select completed jobs: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		removed = int64(len(ids))
		return deleteJobs(ctx, tx, ids...)
	})
	return removed, err
}

// Clear removes every job.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"events", "callbacks", "work_units"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs`)
		if err != nil {
			return fmt.Errorf("clear jobs: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func deleteJobs(ctx context.Context, tx *sql.Tx, ids ...string) error {
	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	for _, table := range []string{"events", "callbacks", "work_units"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE job_id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %v", ErrJobNotFound, ids)
	}
	return nil
}
