package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelforge/internal/jobgraph"
)

const unitColumns = "job_id, name, kind, position, status, package_json, result_json, worker_id, attempts, error_message, last_heartbeat, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(scanner rowScanner) (*Unit, error) {
	var (
		jobID            string
		name             string
		kindStr          string
		position         int
		statusStr        string
		packageJSON      string
		resultJSON       sql.NullString
		workerID         sql.NullString
		attempts         int
		errorMessage     sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&jobID,
		&name,
		&kindStr,
		&position,
		&statusStr,
		&packageJSON,
		&resultJSON,
		&workerID,
		&attempts,
		&errorMessage,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	kind, err := jobgraph.ParseKind(kindStr)
	if err != nil {
		return nil, err
	}
	status, err := jobgraph.ParseStatus(statusStr)
	if err != nil {
		return nil, err
	}
	pkg, err := decodeMap(packageJSON)
	if err != nil {
		return nil, fmt.Errorf("unit %q package: %w", name, err)
	}
	var result map[string]string
	if resultJSON.Valid {
		if result, err = decodeMap(resultJSON.String); err != nil {
			return nil, fmt.Errorf("unit %q result: %w", name, err)
		}
	}

	unit := &Unit{
		WorkUnit: jobgraph.WorkUnit{
			Kind:    kind,
			Name:    name,
			Status:  status,
			Package: pkg,
			Result:  result,
		},
		JobID:        jobID,
		Position:     position,
		WorkerID:     workerID.String,
		Attempts:     attempts,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		unit.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		unit.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			unit.LastHeartbeat = &heartbeat
		}
	}
	return unit, nil
}

func encodeMap(values map[string]string) (string, error) {
	if values == nil {
		values = map[string]string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMap(raw string) (map[string]string, error) {
	values := map[string]string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nowString() string {
	return formatTime(time.Now())
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func recordEvent(ctx context.Context, tx *sql.Tx, jobID, unit, eventType, workerID, message string) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO events (job_id, unit_name, event_type, worker_id, message, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		jobID,
		nullableString(unit),
		eventType,
		nullableString(workerID),
		nullableString(message),
		nowString(),
	)
	if err != nil {
		return fmt.Errorf("record %s event: %w", eventType, err)
	}
	return nil
}
