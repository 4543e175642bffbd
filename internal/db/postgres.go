package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindpal/internal/catalog"
	"mindpal/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	queries := []string{
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
			strategy_requirements JSONB,
			strategy_instruction TEXT,
			strategy_source JSONB,
			strategy_category TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS strategy_emotion (
			strategy_id TEXT NOT NULL REFERENCES strategy(strategy_id) ON DELETE CASCADE,
			emotion_id INTEGER NOT NULL REFERENCES emotion_label(emotion_id) ON DELETE CASCADE,
			PRIMARY KEY (strategy_id, emotion_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_session (
			session_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS chat_message (
			seq BIGSERIAL,
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_session(session_id) ON DELETE CASCADE,
			message_ts TIMESTAMPTZ NOT NULL,
			message_role TEXT NOT NULL CHECK (message_role IN ('child', 'assistant')),
			message_text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_message_session_ts ON chat_message(session_id, message_ts);`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_label_lower_name ON emotion_label(lower(name));`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) EnsureSession(ctx context.Context, sessionID string, create bool) error {
	if create {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO chat_session (session_id) VALUES ($1)
			ON CONFLICT (session_id) DO NOTHING
		`, sessionID)
		return err
	}
	var found string
	err := s.pool.QueryRow(ctx, `SELECT session_id FROM chat_session WHERE session_id=$1`, sessionID).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	return err
}

func (s *PostgresStore) SaveMessage(ctx context.Context, sessionID string, u domain.Utterance) (string, error) {
	if !validRole(u.Role) {
		return "", fmt.Errorf("invalid message role %q", u.Role)
	}
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_message (message_id, session_id, message_ts, message_role, message_text)
		VALUES ($1, $2, $3, $4, $5)
	`, id, sessionID, messageTime(u), string(u.Role), u.Text)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Utterance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT message_role, message_text, message_ts
		FROM (
			SELECT message_role, message_text, message_ts, seq
			FROM chat_message
			WHERE session_id=$1
			ORDER BY message_ts DESC, seq DESC
			LIMIT $2
		) t
		ORDER BY message_ts ASC, seq ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Utterance, 0, limit)
	for rows.Next() {
		var u domain.Utterance
		var role string
		if err := rows.Scan(&role, &u.Text, &u.Timestamp); err != nil {
			return nil, err
		}
		u.Role = domain.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) RecentChildMessages(ctx context.Context, sessionID string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT message_text
		FROM (
			SELECT message_text, message_ts, seq
			FROM chat_message
			WHERE session_id=$1 AND message_role='child'
			ORDER BY message_ts DESC, seq DESC
			LIMIT $2
		) t
		ORDER BY message_ts ASC, seq ASC
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit int, before time.Time) ([]domain.StoredMessage, error) {
	q := `SELECT message_id, message_ts, message_role, message_text FROM chat_message WHERE session_id=$1`
	args := []any{sessionID}
	if !before.IsZero() {
		args = append(args, before.UTC())
		q += fmt.Sprintf(` AND message_ts < $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY message_ts DESC, seq DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StoredMessage, 0, limit)
	for rows.Next() {
		var m domain.StoredMessage
		var role string
		if err := rows.Scan(&m.MessageID, &m.Timestamp, &role, &m.Text); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) StrategiesForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(strategiesForEmotionSQL, "$1"), label)
	if err != nil {
		return nil, err
	}
	return collectStrategies(rows)
}

func (s *PostgresStore) ListStrategies(ctx context.Context) ([]domain.CopingStrategy, error) {
	rows, err := s.pool.Query(ctx, listStrategiesSQL)
	if err != nil {
		return nil, err
	}
	return collectStrategies(rows)
}

func collectStrategies(rows pgx.Rows) ([]domain.CopingStrategy, error) {
	defer rows.Close()
	out := make([]domain.CopingStrategy, 0)
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SeedCatalog(ctx context.Context, c catalog.Catalog) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range c.Emotions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO emotion_label (emotion_id, emoji, name, category)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (emotion_id) DO UPDATE
			SET emoji=EXCLUDED.emoji, name=EXCLUDED.name, category=EXCLUDED.category
		`, e.ID, e.Emoji, strings.ToLower(e.Name), e.Category); err != nil {
			return fmt.Errorf("seed emotion %q: %w", e.Name, err)
		}
	}
	for _, st := range c.Strategies {
		reqs, src, err := encodeStrategyJSON(st.CopingStrategy)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO strategy (strategy_id, strategy_name, strategy_desc, strategy_duration,
				strategy_requirements, strategy_instruction, strategy_source, strategy_category)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7::jsonb, $8)
			ON CONFLICT (strategy_id) DO UPDATE
			SET strategy_name=EXCLUDED.strategy_name, strategy_desc=EXCLUDED.strategy_desc,
				strategy_duration=EXCLUDED.strategy_duration, strategy_requirements=EXCLUDED.strategy_requirements,
				strategy_instruction=EXCLUDED.strategy_instruction, strategy_source=EXCLUDED.strategy_source,
				strategy_category=EXCLUDED.strategy_category
		`, st.ID, st.Name, st.Description, st.Duration, reqs, st.Instruction, src, st.Category); err != nil {
			return fmt.Errorf("seed strategy %q: %w", st.ID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM strategy_emotion WHERE strategy_id=$1`, st.ID); err != nil {
			return err
		}
		for _, name := range st.Emotions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO strategy_emotion (strategy_id, emotion_id)
				SELECT $1, emotion_id FROM emotion_label WHERE lower(name)=lower($2)
				ON CONFLICT DO NOTHING
			`, st.ID, name); err != nil {
				return fmt.Errorf("link strategy %q to %q: %w", st.ID, name, err)
			}
		}
	}
	return tx.Commit(ctx)
}

// rowScanner is satisfied by pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategy(row rowScanner) (domain.CopingStrategy, error) {
	var s domain.CopingStrategy
	var reqs, src []byte
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Duration, &reqs, &s.Instruction, &src, &s.Category); err != nil {
		return domain.CopingStrategy{}, err
	}
	var err error
	if s.Requirements, err = decodeJSONObject(reqs); err != nil {
		return domain.CopingStrategy{}, fmt.Errorf("strategy %s requirements: %w", s.ID, err)
	}
	if s.Source, err = decodeJSONObject(src); err != nil {
		return domain.CopingStrategy{}, fmt.Errorf("strategy %s source: %w", s.ID, err)
	}
	return s, nil
}

func decodeJSONObject(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeStrategyJSON returns nil for absent objects so the columns stay NULL.
func encodeStrategyJSON(s domain.CopingStrategy) (reqs, src *string, err error) {
	enc := func(m map[string]any) (*string, error) {
		if len(m) == 0 {
			return nil, nil
		}
		buf, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode strategy %s: %w", s.ID, err)
		}
		str := string(buf)
		return &str, nil
	}
	if reqs, err = enc(s.Requirements); err != nil {
		return nil, nil, err
	}
	if src, err = enc(s.Source); err != nil {
		return nil, nil, err
	}
	return reqs, src, nil
}
