package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mindpal/internal/catalog"
	"mindpal/internal/domain"
)

// sqliteSchemaVersion is the latest schema version known to Migrate.
const sqliteSchemaVersion = 1

// SQLiteStore implements Repository on SQLite. It backs local development
// and the tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens path, or a private in-memory database for ":memory:".
func NewSQLite(path string) (*SQLiteStore, error) {
	memory := path == "" || path == ":memory:"
	dsn := ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS emotion_label (
			emotion_id INTEGER PRIMARY KEY,
			emoji TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS strategy (
			strategy_id TEXT PRIMARY KEY,
			strategy_name TEXT NOT NULL,
			strategy_desc TEXT,
			strategy_duration TEXT,
			strategy_requirements TEXT,
			strategy_instruction TEXT,
			strategy_source TEXT,
			strategy_category TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS strategy_emotion (
			strategy_id TEXT NOT NULL REFERENCES strategy(strategy_id) ON DELETE CASCADE,
			emotion_id INTEGER NOT NULL REFERENCES emotion_label(emotion_id) ON DELETE CASCADE,
			PRIMARY KEY (strategy_id, emotion_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_session (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_message (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_session(session_id) ON DELETE CASCADE,
			message_ts TEXT NOT NULL,
			message_role TEXT NOT NULL CHECK (message_role IN ('child', 'assistant')),
			message_text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_message_session_ts ON chat_message(session_id, message_ts);`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?);`, sqliteSchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string, create bool) error {
	if create {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chat_session (session_id, created_at) VALUES (?, ?)
			ON CONFLICT (session_id) DO NOTHING
		`, sessionID, formatTS(time.Now()))
		return err
	}
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT session_id FROM chat_session WHERE session_id=?`, sessionID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	return err
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID string, u domain.Utterance) (string, error) {
	if !validRole(u.Role) {
		return "", fmt.Errorf("invalid message role %q", u.Role)
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_message (message_id, session_id, message_ts, message_role, message_text)
		VALUES (?, ?, ?, ?, ?)
	`, id, sessionID, formatTS(messageTime(u)), string(u.Role), u.Text)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Utterance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_role, message_text, message_ts
		FROM (
			SELECT message_role, message_text, message_ts, rowid AS rid
			FROM chat_message
			WHERE session_id=?
			ORDER BY message_ts DESC, rowid DESC
			LIMIT ?
		) t
		ORDER BY message_ts ASC, rid ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Utterance, 0, limit)
	for rows.Next() {
		var role, ts string
		var u domain.Utterance
		if err := rows.Scan(&role, &u.Text, &ts); err != nil {
			return nil, err
		}
		if u.Timestamp, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("message timestamp %q: %w", ts, err)
		}
		u.Role = domain.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecentChildMessages(ctx context.Context, sessionID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_text
		FROM (
			SELECT message_text, message_ts, rowid AS rid
			FROM chat_message
			WHERE session_id=? AND message_role='child'
			ORDER BY message_ts DESC, rowid DESC
			LIMIT ?
		) t
		ORDER BY message_ts ASC, rid ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int, before time.Time) ([]domain.StoredMessage, error) {
	q := `SELECT message_id, message_ts, message_role, message_text FROM chat_message WHERE session_id=?`
	args := []any{sessionID}
	if !before.IsZero() {
		q += ` AND message_ts < ?`
		args = append(args, formatTS(before))
	}
	q += ` ORDER BY message_ts DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StoredMessage, 0, limit)
	for rows.Next() {
		var m domain.StoredMessage
		var role, ts string
		if err := rows.Scan(&m.MessageID, &ts, &role, &m.Text); err != nil {
			return nil, err
		}
		if m.Timestamp, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("message timestamp %q: %w", ts, err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StrategiesForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(strategiesForEmotionSQL, "?"), label)
	if err != nil {
		return nil, err
	}
	return collectSQLStrategies(rows)
}

func (s *SQLiteStore) ListStrategies(ctx context.Context) ([]domain.CopingStrategy, error) {
	rows, err := s.db.QueryContext(ctx, listStrategiesSQL)
	if err != nil {
		return nil, err
	}
	return collectSQLStrategies(rows)
}

func collectSQLStrategies(rows *sql.Rows) ([]domain.CopingStrategy, error) {
	defer rows.Close()
	out := make([]domain.CopingStrategy, 0)
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SeedCatalog(ctx context.Context, c catalog.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range c.Emotions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO emotion_label (emotion_id, emoji, name, category)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (emotion_id) DO UPDATE
			SET emoji=excluded.emoji, name=excluded.name, category=excluded.category
		`, e.ID, e.Emoji, strings.ToLower(e.Name), e.Category); err != nil {
			return fmt.Errorf("seed emotion %q: %w", e.Name, err)
		}
	}
	for _, st := range c.Strategies {
		reqs, src, err := encodeStrategyJSON(st.CopingStrategy)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO strategy (strategy_id, strategy_name, strategy_desc, strategy_duration,
				strategy_requirements, strategy_instruction, strategy_source, strategy_category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (strategy_id) DO UPDATE
			SET strategy_name=excluded.strategy_name, strategy_desc=excluded.strategy_desc,
				strategy_duration=excluded.strategy_duration, strategy_requirements=excluded.strategy_requirements,
				strategy_instruction=excluded.strategy_instruction, strategy_source=excluded.strategy_source,
				strategy_category=excluded.strategy_category
		`, st.ID, st.Name, st.Description, st.Duration, reqs, st.Instruction, src, st.Category); err != nil {
			return fmt.Errorf("seed strategy %q: %w", st.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM strategy_emotion WHERE strategy_id=?`, st.ID); err != nil {
			return err
		}
		for _, name := range st.Emotions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO strategy_emotion (strategy_id, emotion_id)
				SELECT ?, emotion_id FROM emotion_label WHERE lower(name)=lower(?)
				ON CONFLICT DO NOTHING
			`, st.ID, name); err != nil {
				return fmt.Errorf("link strategy %q to %q: %w", st.ID, name, err)
			}
		}
	}
	return tx.Commit()
}
