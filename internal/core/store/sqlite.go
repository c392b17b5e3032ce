package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"guardrail/internal/engine/parser"
	"guardrail/internal/shared/observability"
)

const sqliteDriverName = "sqlite"

const analysisSchema = `
CREATE TABLE IF NOT EXISTS file_analyses (
  path         TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  language     TEXT NOT NULL DEFAULT '',
  analysis     BLOB NOT NULL,
  stored_at    INTEGER NOT NULL,
  PRIMARY KEY (path)
);
CREATE INDEX IF NOT EXISTS idx_file_analyses_hash ON file_analyses(content_hash);
`

// SQLiteStore is a durable AnalysisStore backed by a single sqlite file.
// Analyses are stored as JSON; one row per path, replaced on re-analysis.
type SQLiteStore struct {
	db      *sql.DB
	getStmt *sql.Stmt
	putStmt *sql.Stmt
	delStmt *sql.Stmt
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("analysis store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("analysis store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analysis store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open analysis store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping analysis store %q: %w", cleanPath, err)
	}

	if _, err := db.Exec(analysisSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate analysis schema: %w", err)
	}

	getStmt, err := db.Prepare(
		`SELECT analysis FROM file_analyses WHERE path = ? AND content_hash = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare get stmt: %w", err)
	}
	putStmt, err := db.Prepare(
		`INSERT INTO file_analyses (path, content_hash, language, analysis, stored_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   language = excluded.language,
		   analysis = excluded.analysis,
		   stored_at = excluded.stored_at`)
	if err != nil {
		_ = getStmt.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare put stmt: %w", err)
	}
	delStmt, err := db.Prepare(`DELETE FROM file_analyses WHERE path = ?`)
	if err != nil {
		_ = getStmt.Close()
		_ = putStmt.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare delete stmt: %w", err)
	}

	return &SQLiteStore{db: db, getStmt: getStmt, putStmt: putStmt, delStmt: delStmt}, nil
}

func (s *SQLiteStore) Get(path, contentHash string) (*parser.File, bool, error) {
	var blob []byte
	err := s.getStmt.QueryRow(path, contentHash).Scan(&blob)
	if err == sql.ErrNoRows {
		observability.AnalysisCacheMissesTotal.Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load analysis for %q: %w", path, err)
	}

	var file parser.File
	if err := json.Unmarshal(blob, &file); err != nil {
		// A corrupt row is treated as a miss; the next Put overwrites it.
		observability.AnalysisCacheMissesTotal.Inc()
		return nil, false, nil
	}
	observability.AnalysisCacheHitsTotal.Inc()
	return &file, true, nil
}

func (s *SQLiteStore) Put(path, contentHash string, file *parser.File) error {
	blob, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode analysis for %q: %w", path, err)
	}
	if _, err := s.putStmt.Exec(path, contentHash, file.Language, blob, time.Now().Unix()); err != nil {
		return fmt.Errorf("store analysis for %q: %w", path, err)
	}
	return nil
}

func (s *SQLiteStore) Evict(path string) error {
	if _, err := s.delStmt.Exec(path); err != nil {
		return fmt.Errorf("evict analysis for %q: %w", path, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.putStmt, s.delStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
