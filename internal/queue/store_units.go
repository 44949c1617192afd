package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelforge/internal/jobgraph"
)

// Unit fetches one unit of a job.
func (s *Store) Unit(ctx context.Context, jobID, name string) (*Unit, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM work_units WHERE job_id = ? AND name = ?`, jobID, name)
	unit, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s unit %q", ErrUnitNotFound, jobID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return unit, nil
}

// Units lists the units of a job in graph order.
func (s *Store) Units(ctx context.Context, jobID string) ([]Unit, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+unitColumns+` FROM work_units WHERE job_id = ? ORDER BY position`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, *unit)
	}
	return units, rows.Err()
}

// Next claims the oldest pending unit for workerID, moving it to running. It
// returns nil when nothing is pending.
func (s *Store) Next(ctx context.Context, workerID string) (*Unit, error) {
	var (
		jobID string
		name  string
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		jobID, name = "", ""
		err := tx.QueryRowContext(
			ctx,
			`SELECT w.job_id, w.name FROM work_units w JOIN jobs j ON j.id = w.job_id
             WHERE w.status = ? ORDER BY j.rowid, w.position LIMIT 1`,
			jobgraph.StatusPending,
		).Scan(&jobID, &name)
		if errors.Is(err, sql.ErrNoRows) {
			jobID, name = "", ""
			return nil
		}
		if err != nil {
			return fmt.Errorf("select pending unit: %w", err)
		}

		now := nowString()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_units
             SET status = ?, worker_id = ?, attempts = attempts + 1, error_message = NULL,
                 last_heartbeat = ?, updated_at = ?
             WHERE job_id = ? AND name = ? AND status = ?`,
			jobgraph.StatusRunning,
			workerID,
			now,
			now,
			jobID,
			name,
			jobgraph.StatusPending,
		)
		if err != nil {
			return fmt.Errorf("claim unit: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			jobID, name = "", ""
			return nil
		}
		return recordEvent(ctx, tx, jobID, name, EventClaimed, workerID, "")
	})
	if err != nil {
		return nil, err
	}
	if jobID == "" {
		return nil, nil
	}
	return s.Unit(ctx, jobID, name)
}

// Complete records a successful unit with its result package and runs every
// callback of the job whose trigger is now satisfied. Each callback fires at
// most once.
func (s *Store) Complete(ctx context.Context, jobID, name, workerID string, result map[string]string) error {
	resultJSON, err := encodeMap(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkClaim(ctx, tx, jobID, name, workerID, jobgraph.StatusComplete); err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE work_units SET status = ?, result_json = ?, last_heartbeat = NULL, updated_at = ?
             WHERE job_id = ? AND name = ?`,
			jobgraph.StatusComplete,
			resultJSON,
			nowString(),
			jobID,
			name,
		); err != nil {
			return fmt.Errorf("complete unit: %w", err)
		}
		if err := recordEvent(ctx, tx, jobID, name, EventCompleted, workerID, ""); err != nil {
			return err
		}
		return fireCallbacks(ctx, tx, jobID)
	})
}

// Fail records a failed unit. Retryable failures return to pending while the
// unit has attempts left; the returned status is the one persisted.
func (s *Store) Fail(ctx context.Context, jobID, name, workerID, message string, retryable bool) (jobgraph.Status, error) {
	var next jobgraph.Status
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkClaim(ctx, tx, jobID, name, workerID, jobgraph.StatusFailed); err != nil {
			return err
		}
		var attempts int
		if err := tx.QueryRowContext(ctx, `SELECT attempts FROM work_units WHERE job_id = ? AND name = ?`, jobID, name).Scan(&attempts); err != nil {
			return fmt.Errorf("read attempts: %w", err)
		}
		next = jobgraph.StatusFailed
		eventType := EventFailed
		if retryable && attempts < s.maxAttempts {
			next = jobgraph.StatusPending
			eventType = EventRequeued
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE work_units SET status = ?, error_message = ?, worker_id = NULL, last_heartbeat = NULL, updated_at = ?
             WHERE job_id = ? AND name = ?`,
			next,
			nullableString(message),
			nowString(),
			jobID,
			name,
		); err != nil {
			return fmt.Errorf("fail unit: %w", err)
		}
		return recordEvent(ctx, tx, jobID, name, eventType, workerID, message)
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

// checkClaim verifies the unit is running under workerID and may move to next.
func checkClaim(ctx context.Context, tx *sql.Tx, jobID, name, workerID string, next jobgraph.Status) error {
	var (
		statusStr string
		owner     sql.NullString
	)
	err := tx.QueryRowContext(ctx, `SELECT status, worker_id FROM work_units WHERE job_id = ? AND name = ?`, jobID, name).Scan(&statusStr, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: job %s unit %q", ErrUnitNotFound, jobID, name)
	}
	if err != nil {
		return fmt.Errorf("read unit status: %w", err)
	}
	status := jobgraph.Status(statusStr)
	if status != jobgraph.StatusRunning || !status.CanTransition(next) {
		return &TransitionError{JobID: jobID, Unit: name, From: status, To: next}
	}
	if workerID != "" && owner.String != workerID {
		return &NotOwnedError{JobID: jobID, Unit: name, WorkerID: workerID, Owner: owner.String}
	}
	return nil
}

// fireCallbacks evaluates the unfired callbacks of a job against its
// completed units and applies the ones that are satisfied.
func fireCallbacks(ctx context.Context, tx *sql.Tx, jobID string) error {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id, job_id, trigger_expr, action, units_json, fired_at FROM callbacks
         WHERE job_id = ? AND fired_at IS NULL ORDER BY position`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("load callbacks: %w", err)
	}
	pending, err := scanCallbacks(rows)
	closeErr := rows.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	if len(pending) == 0 {
		return nil
	}

	completed, err := completedUnits(ctx, tx, jobID)
	if err != nil {
		return err
	}
	isComplete := func(name string) bool { return completed[name] }

	now := nowString()
	for _, record := range pending {
		if !record.Callback.Trigger.Satisfied(isComplete) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE callbacks SET fired_at = ? WHERE id = ?`, now, record.ID); err != nil {
			return fmt.Errorf("mark callback fired: %w", err)
		}
		switch record.Callback.Action {
		case jobgraph.ActionUnblock:
			if err := unblockUnits(ctx, tx, jobID, record.Callback.Units, "callback: "+record.Callback.Trigger.String()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("callback %d: unsupported action %q", record.ID, record.Callback.Action)
		}
	}
	return nil
}

func completedUnits(ctx context.Context, tx *sql.Tx, jobID string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM work_units WHERE job_id = ? AND status = ?`, jobID, jobgraph.StatusComplete)
	if err != nil {
		return nil, fmt.Errorf("load completed units: %w", err)
	}
	defer rows.Close()
	completed := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		completed[name] = true
	}
	return completed, rows.Err()
}

// unblockUnits moves the named units from blocked to pending. Units in any
// other status are left alone.
func unblockUnits(ctx context.Context, tx *sql.Tx, jobID string, names []string, message string) error {
	now := nowString()
	for _, name := range names {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_units SET status = ?, updated_at = ? WHERE job_id = ? AND name = ? AND status = ?`,
			jobgraph.StatusPending,
			now,
			jobID,
			name,
			jobgraph.StatusBlocked,
		)
		if err != nil {
			return fmt.Errorf("unblock %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if err := recordEvent(ctx, tx, jobID, name, EventUnblocked, "", message); err != nil {
			return err
		}
	}
	return nil
}

// Block moves units to blocked. With no names every unit of the job that is
// not complete is blocked. A running unit keeps its claim record; its worker
// notices on the next heartbeat and abandons the unit.
func (s *Store) Block(ctx context.Context, jobID string, names ...string) (int64, error) {
	return s.moveUnits(ctx, jobID, names, jobgraph.StatusBlocked, EventBlocked, "blocked by operator",
		jobgraph.StatusPending, jobgraph.StatusRunning, jobgraph.StatusFailed)
}

// Unblock moves blocked units back to pending.
func (s *Store) Unblock(ctx context.Context, jobID string, names ...string) (int64, error) {
	return s.moveUnits(ctx, jobID, names, jobgraph.StatusPending, EventUnblocked, "unblocked by operator",
		jobgraph.StatusBlocked)
}

// Retry moves failed units back to pending and resets their attempt count.
func (s *Store) Retry(ctx context.Context, jobID string, names ...string) (int64, error) {
	return s.moveUnits(ctx, jobID, names, jobgraph.StatusPending, EventRetried, "retry requested",
		jobgraph.StatusFailed)
}

func (s *Store) moveUnits(ctx context.Context, jobID string, names []string, to jobgraph.Status, eventType, message string, from ...jobgraph.Status) (int64, error) {
	var moved int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		moved = 0
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, jobID).Scan(&exists); err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}

		targets := names
		if len(targets) == 0 {
			all, err := unitNamesInStatus(ctx, tx, jobID, from)
			if err != nil {
				return err
			}
			targets = all
		}

		now := nowString()
		for _, name := range targets {
			var statusStr string
			err := tx.QueryRowContext(ctx, `SELECT status FROM work_units WHERE job_id = ? AND name = ?`, jobID, name).Scan(&statusStr)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: job %s unit %q", ErrUnitNotFound, jobID, name)
			}
			if err != nil {
				return fmt.Errorf("read unit status: %w", err)
			}
			current := jobgraph.Status(statusStr)
			if !containsStatus(from, current) || !current.CanTransition(to) {
				continue
			}
			query := `UPDATE work_units SET status = ?, updated_at = ? WHERE job_id = ? AND name = ?`
			if eventType == EventRetried {
				query = `UPDATE work_units SET status = ?, attempts = 0, error_message = NULL, updated_at = ? WHERE job_id = ? AND name = ?`
			}
			if _, err := tx.ExecContext(ctx, query, to, now, jobID, name); err != nil {
				return fmt.Errorf("move unit %q: %w", name, err)
			}
			if err := recordEvent(ctx, tx, jobID, name, eventType, "", message); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	return moved, err
}

func unitNamesInStatus(ctx context.Context, tx *sql.Tx, jobID string, statuses []jobgraph.Status) ([]string, error) {
	args := make([]any, 0, len(statuses)+1)
	args = append(args, jobID)
	for _, status := range statuses {
		args = append(args, status)
	}
	rows, err := tx.QueryContext(
		ctx,
		`SELECT name FROM work_units WHERE job_id = ? AND status IN (`+makePlaceholders(len(statuses))+`) ORDER BY position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select units: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func containsStatus(statuses []jobgraph.Status, status jobgraph.Status) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// Heartbeat refreshes the claim of a running unit. It reports false when the
// unit is no longer running under workerID, for example because it was
// blocked or reclaimed; the worker should then abandon it.
func (s *Store) Heartbeat(ctx context.Context, jobID, name, workerID string) (bool, error) {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE work_units SET last_heartbeat = ?, updated_at = ?
         WHERE job_id = ? AND name = ? AND status = ? AND worker_id = ?`,
		now,
		now,
		jobID,
		name,
		jobgraph.StatusRunning,
		workerID,
	)
	if err != nil {
		return false, fmt.Errorf("update heartbeat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReclaimStale returns running units whose heartbeat is older than cutoff to
// pending so another worker can pick them up.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var reclaimed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		reclaimed = 0
		rows, err := tx.QueryContext(
			ctx,
			`SELECT job_id, name, worker_id FROM work_units
             WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			jobgraph.StatusRunning,
			formatTime(cutoff),
		)
		if err != nil {
			return fmt.Errorf("select stale units: %w", err)
		}
		type staleUnit struct {
			jobID, name string
			workerID    sql.NullString
		}
		var stale []staleUnit
		for rows.Next() {
			var u staleUnit
			if err := rows.Scan(&u.jobID, &u.name, &u.workerID); err != nil {
				rows.Close()
				return err
			}
			stale = append(stale, u)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		now := nowString()
		for _, u := range stale {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE work_units SET status = ?, worker_id = NULL, last_heartbeat = NULL, updated_at = ?
                 WHERE job_id = ? AND name = ? AND status = ?`,
				jobgraph.StatusPending,
				now,
				u.jobID,
				u.name,
				jobgraph.StatusRunning,
			); err != nil {
				return fmt.Errorf("reclaim unit %q: %w", u.name, err)
			}
			if err := recordEvent(ctx, tx, u.jobID, u.name, EventReclaimed, u.workerID.String, "heartbeat expired"); err != nil {
				return err
			}
			reclaimed++
		}
		return nil
	})
	return reclaimed, err
}
