package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/constraint"
)

// Entry is one recorded violation
type Entry struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	RootType      string            `json:"root_type"`
	Path          string            `json:"path"`
	Check         string            `json:"check"`
	ErrorCode     string            `json:"error_code"`
	Message       string            `json:"message"`
	Severity      int               `json:"severity"`
	InvalidValue  string            `json:"invalid_value,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
}

// Filter defines criteria for querying entries
type Filter struct {
	Source        string
	RootType      string
	Check         string
	CorrelationID string
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
	Offset        int
}

// Stats summarizes the journal
type Stats struct {
	Total      int64            `json:"total"`
	ByCheck    map[string]int64 `json:"by_check"`
	ByRootType map[string]int64 `json:"by_root_type"`
	LastEntry  time.Time        `json:"last_entry,omitempty"`
}

// Store persists violation entries
type Store interface {
	Record(ctx context.Context, entry *Entry) error
	RecordBatch(ctx context.Context, entries []*Entry) (int, int, error)
	Query(ctx context.Context, filter Filter) ([]*Entry, error)
	Stats(ctx context.Context) (*Stats, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// EntriesFromViolations converts violations into entries sharing one
// timestamp
func EntriesFromViolations(source string, root interface{}, violations []*constraint.Violation) []*Entry {
	now := time.Now().UTC()
	rootType := ""
	if t := constraint.TypeOf(root); t != nil {
		rootType = constraint.TypeName(t)
	}

	entries := make([]*Entry, 0, len(violations))
	for _, v := range violations {
		e := &Entry{
			Timestamp:     now,
			Source:        source,
			CorrelationID: v.CorrelationID,
			RootType:      rootType,
			Path:          v.PathString(),
			Check:         v.CheckName,
			ErrorCode:     v.ErrorCode,
			Message:       v.Message,
			Severity:      v.Severity,
			Variables:     v.MessageVariables,
		}
		if v.InvalidValue != nil {
			e.InvalidValue = constraint.Stringify(v.InvalidValue)
		}
		if e.RootType == "" && v.Context.Type != nil {
			e.RootType = constraint.TypeName(v.Context.Type)
		}
		entries = append(entries, e)
	}
	return entries
}

func prepare(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

func storageError(err error, msg string) error {
	return mdwerror.Wrap(err, msg).
		WithCode(mdwerror.CodeStorageError).
		WithOperation("journal")
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// SQLiteConfig holds configuration for the SQLite store
type SQLiteConfig struct {
	// Path is a file path or ":memory:"
	Path string
}

// DefaultSQLiteConfig returns default configuration
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path: "./data/guardian-journal.db",
	}
}

// NewSQLiteStore opens or creates a journal database
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		cfg = DefaultSQLiteConfig()
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, storageError(err, "failed to create journal directory")
		}
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storageError(err, "failed to open journal database")
	}
	if cfg.Path == ":memory:" {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, storageError(err, "failed to initialize journal schema")
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS violations (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		source TEXT NOT NULL,
		correlation_id TEXT,
		root_type TEXT NOT NULL,
		path TEXT NOT NULL,
		check_name TEXT NOT NULL,
		error_code TEXT NOT NULL,
		message TEXT NOT NULL,
		severity INTEGER NOT NULL,
		invalid_value TEXT,
		variables TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_violations_timestamp ON violations(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_violations_root_type ON violations(root_type);
	CREATE INDEX IF NOT EXISTS idx_violations_check ON violations(check_name);
	CREATE INDEX IF NOT EXISTS idx_violations_correlation ON violations(correlation_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const insertSQL = `
	INSERT INTO violations (id, timestamp, source, correlation_id, root_type, path,
		check_name, error_code, message, severity, invalid_value, variables)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertArgs(e *Entry) []interface{} {
	var vars []byte
	if e.Variables != nil {
		vars, _ = json.Marshal(e.Variables)
	}
	return []interface{}{e.ID, e.Timestamp, e.Source, e.CorrelationID, e.RootType, e.Path,
		e.Check, e.ErrorCode, e.Message, e.Severity, e.InvalidValue, vars}
}

// Record stores a single entry
func (s *SQLiteStore) Record(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepare(entry)
	if _, err := s.db.ExecContext(ctx, insertSQL, insertArgs(entry)...); err != nil {
		return storageError(err, "failed to insert journal entry")
	}
	return nil
}

// RecordBatch stores entries in one transaction and returns the number of
// accepted and rejected entries
func (s *SQLiteStore) RecordBatch(ctx context.Context, entries []*Entry) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, len(entries), storageError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, len(entries), storageError(err, "failed to prepare statement")
	}
	defer stmt.Close()

	var accepted, rejected int
	for _, entry := range entries {
		if entry == nil || entry.Check == "" {
			rejected++
			continue
		}
		prepare(entry)
		if _, err := stmt.ExecContext(ctx, insertArgs(entry)...); err != nil {
			rejected++
		} else {
			accepted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, len(entries), storageError(err, "failed to commit transaction")
	}
	return accepted, rejected, nil
}

// Query retrieves entries matching filter, newest first
func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, timestamp, source, correlation_id, root_type, path, check_name,
		error_code, message, severity, invalid_value, variables FROM violations WHERE 1=1`
	var args []interface{}

	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.RootType != "" {
		query += " AND root_type = ?"
		args = append(args, filter.RootType)
	}
	if filter.Check != "" {
		query += " AND check_name = ?"
		args = append(args, filter.Check)
	}
	if filter.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, filter.CorrelationID)
	}
	if !filter.StartTime.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "failed to query journal")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var correlationID, invalidValue, vars sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Source, &correlationID, &e.RootType, &e.Path,
			&e.Check, &e.ErrorCode, &e.Message, &e.Severity, &invalidValue, &vars); err != nil {
			return nil, storageError(err, "failed to scan journal entry")
		}
		e.CorrelationID = correlationID.String
		e.InvalidValue = invalidValue.String
		if vars.Valid && vars.String != "" {
			_ = json.Unmarshal([]byte(vars.String), &e.Variables)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "failed to read journal entries")
	}
	return entries, nil
}

// Stats returns counts by check and root type
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{ByCheck: make(map[string]int64), ByRootType: make(map[string]int64)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`).Scan(&stats.Total); err != nil {
		return nil, storageError(err, "failed to count journal entries")
	}

	if err := s.groupCount(ctx, `SELECT check_name, COUNT(*) FROM violations GROUP BY check_name`, stats.ByCheck); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT root_type, COUNT(*) FROM violations GROUP BY root_type`, stats.ByRootType); err != nil {
		return nil, err
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM violations`).Scan(&last); err == nil && last.Valid {
		for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano} {
			if t, err := time.Parse(layout, last.String); err == nil {
				stats.LastEntry = t
				break
			}
		}
	}
	return stats, nil
}

func (s *SQLiteStore) groupCount(ctx context.Context, query string, out map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return storageError(err, "failed to aggregate journal")
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return storageError(err, "failed to scan journal aggregate")
		}
		out[key] = count
	}
	return rows.Err()
}

// Prune removes entries older than olderThan
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, `DELETE FROM violations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, storageError(err, "failed to prune journal")
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// Vacuum optimizes the database
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `VACUUM`)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-memory Store for tests
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepare(entry)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) RecordBatch(ctx context.Context, entries []*Entry) (int, int, error) {
	var accepted, rejected int
	for _, entry := range entries {
		if entry == nil || entry.Check == "" {
			rejected++
			continue
		}
		_ = s.Record(ctx, entry)
		accepted++
	}
	return accepted, rejected, nil
}

func (s *MemoryStore) Query(_ context.Context, filter Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.Source != "" && e.Source != filter.Source {
			continue
		}
		if filter.RootType != "" && e.RootType != filter.RootType {
			continue
		}
		if filter.Check != "" && e.Check != filter.Check {
			continue
		}
		if filter.CorrelationID != "" && e.CorrelationID != filter.CorrelationID {
			continue
		}
		if !filter.StartTime.IsZero() && e.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && e.Timestamp.After(filter.EndTime) {
			continue
		}
		results = append(results, e)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return nil, nil
		}
		results = results[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(results) {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		Total:      int64(len(s.entries)),
		ByCheck:    make(map[string]int64),
		ByRootType: make(map[string]int64),
	}
	for _, e := range s.entries {
		stats.ByCheck[e.Check]++
		stats.ByRootType[e.RootType]++
		if e.Timestamp.After(stats.LastEntry) {
			stats.LastEntry = e.Timestamp
		}
	}
	return stats, nil
}

func (s *MemoryStore) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

func (s *MemoryStore) Close() error { return nil }
