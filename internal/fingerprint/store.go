package fingerprint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"reelforge/internal/framerange"
	"reelforge/internal/sequence"
)

const (
	defaultLockTimeout = 30 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
	selectBatchSize    = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS frames (
	name TEXT PRIMARY KEY,
	token TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists the fingerprint of the last successful encode of a sequence.
type Store struct {
	db          *sql.DB
	path        string
	policy      Policy
	lock        *flock.Flock
	lockTimeout time.Duration
	mu          sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithLockTimeout bounds how long writers wait for the cross-process lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.lockTimeout = timeout
		}
	}
}

// DBPath returns the conventional store location for a sequence:
// <sequence folder>/.DATA.<init file stem>.db.
func DBPath(desc sequence.Descriptor, initFile string) string {
	base := filepath.Base(initFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = desc.Name()
	}
	return filepath.Join(desc.Folder, ".DATA."+stem+".db")
}

// Open creates or connects to the store at path. When the store was written
// under a different policy its tokens are discarded, since tokens of
// different policies never compare equal.
func Open(ctx context.Context, path string, policy Policy, opts ...Option) (*Store, error) {
	if policy == "" {
		policy = PolicyMTime
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply busy timeout: %w", err)
	}
	store := &Store{
		db:          db,
		path:        path,
		policy:      policy,
		lock:        flock.New(path + ".lock"),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.withLock(ctx, func() error { return store.initSchema(ctx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create fingerprint schema: %w", err)
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'policy'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read fingerprint policy: %w", err)
	case Policy(stored) == s.policy:
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin policy update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if stored != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM frames`); err != nil {
			return fmt.Errorf("discard tokens from policy %s: %w", stored, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES ('policy', ?)`, string(s.policy)); err != nil {
		return fmt.Errorf("record fingerprint policy: %w", err)
	}
	return tx.Commit()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Policy returns the token policy of the store.
func (s *Store) Policy() Policy { return s.policy }

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire fingerprint lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("acquire fingerprint lock %s: not acquired", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// Load returns the persisted tokens for keys. A nil keys slice loads every
// stored token. Keys without a stored token are absent from the result.
// Keys are matched byte for byte; Current and ScopeKeys already produce
// normalized keys.
func (s *Store) Load(ctx context.Context, keys []string) (Fingerprint, error) {
	fp := make(Fingerprint, len(keys))
	if keys == nil {
		rows, err := s.db.QueryContext(ctx, `SELECT name, token FROM frames`)
		if err != nil {
			return nil, fmt.Errorf("load fingerprints: %w", err)
		}
		if err := scanInto(rows, fp); err != nil {
			return nil, err
		}
		return fp, nil
	}
	for start := 0; start < len(keys); start += selectBatchSize {
		end := min(start+selectBatchSize, len(keys))
		batch := keys[start:end]
		args := make([]any, len(batch))
		for i, key := range batch {
			args[i] = key
		}
		query := `SELECT name, token FROM frames WHERE name IN (` + placeholders(len(batch)) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("load fingerprints: %w", err)
		}
		if err := scanInto(rows, fp); err != nil {
			return nil, err
		}
	}
	return fp, nil
}

func scanInto(rows *sql.Rows, fp Fingerprint) error {
	defer rows.Close()
	for rows.Next() {
		var name, token string
		if err := rows.Scan(&name, &token); err != nil {
			return fmt.Errorf("scan fingerprint: %w", err)
		}
		fp[name] = token
	}
	return rows.Err()
}

// Save upserts every token of fp.
func (s *Store) Save(ctx context.Context, fp Fingerprint) error {
	return s.Replace(ctx, nil, fp)
}

// Replace makes the stored tokens within scope equal to fp: scope keys absent
// from fp are deleted and every token of fp is upserted. Keys outside scope
// and fp are left alone.
func (s *Store) Replace(ctx context.Context, scope []string, fp Fingerprint) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		return replaceTx(ctx, tx, scope, fp)
	})
}

func (s *Store) update(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withLock(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin fingerprint update: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit fingerprints: %w", err)
		}
		return nil
	})
}

func replaceTx(ctx context.Context, tx *sql.Tx, scope []string, fp Fingerprint) error {
	for _, key := range scope {
		if _, ok := fp[key]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE name = ?`, key); err != nil {
			return fmt.Errorf("delete fingerprint %s: %w", key, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO frames (name, token) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fingerprint upsert: %w", err)
	}
	defer stmt.Close()
	for _, key := range fp.Keys() {
		if _, err := stmt.ExecContext(ctx, key, fp[key]); err != nil {
			return fmt.Errorf("upsert fingerprint %s: %w", key, err)
		}
	}
	return nil
}

// Evaluation is the result of comparing a frame range against the store.
type Evaluation struct {
	Scope   []string
	Current Fingerprint
	Diff    Diff
}

// Reencode reports whether any frame of the evaluated range changed.
func (e Evaluation) Reencode() bool {
	return e.Diff.HasChanges()
}

// Evaluate fingerprints the frames of r and diffs them against the store.
func (s *Store) Evaluate(ctx context.Context, desc sequence.Descriptor, r framerange.Set) (Evaluation, error) {
	current, err := Current(desc, r, s.policy)
	if err != nil {
		return Evaluation{}, err
	}
	scope := ScopeKeys(desc, r)
	previous, err := s.Load(ctx, scope)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Scope: scope, Current: current, Diff: Compare(previous, current)}, nil
}

// ShouldReencode reports whether any frame of r was added, removed, or
// modified since the last Commit covering it.
func (s *Store) ShouldReencode(ctx context.Context, desc sequence.Descriptor, r framerange.Set) (bool, error) {
	eval, err := s.Evaluate(ctx, desc, r)
	if err != nil {
		return false, err
	}
	return eval.Reencode(), nil
}

// Commit persists an evaluation after its range was encoded successfully.
func (s *Store) Commit(ctx context.Context, eval Evaluation) error {
	return s.Replace(ctx, eval.Scope, eval.Current)
}

// CommitSegment persists eval together with the file the segment planned at
// planned was actually written to. The encoder may land on a suffixed name
// when planned is taken by another file.
func (s *Store) CommitSegment(ctx context.Context, eval Evaluation, planned, written string) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		if err := replaceTx(ctx, tx, eval.Scope, eval.Current); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, segmentSettingKey(planned), written); err != nil {
			return fmt.Errorf("record segment output %s: %w", planned, err)
		}
		return nil
	})
}

// SegmentOutput returns the file recorded by CommitSegment for planned, or
// planned itself when nothing was recorded.
func (s *Store) SegmentOutput(ctx context.Context, planned string) (string, error) {
	var written string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, segmentSettingKey(planned)).Scan(&written)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return planned, nil
	case err != nil:
		return "", fmt.Errorf("read segment output %s: %w", planned, err)
	}
	return written, nil
}

func segmentSettingKey(planned string) string {
	return "segment:" + planned
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
