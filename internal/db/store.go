// Package db persists chat history and serves the coping-strategy catalog.
package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"mindpal/internal/catalog"
	"mindpal/internal/domain"
)

var ErrSessionNotFound = errors.New("chat session not found")

// Repository is the persistence surface used by the chat service, the
// strategy selector and the catalog endpoints.
type Repository interface {
	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error

	// EnsureSession makes sure a chat session exists. When create is false a
	// missing session yields ErrSessionNotFound.
	EnsureSession(ctx context.Context, sessionID string, create bool) error

	// SaveMessage stores one utterance and returns its generated message id.
	SaveMessage(ctx context.Context, sessionID string, u domain.Utterance) (string, error)

	// RecentMessages returns up to limit most recent utterances of a session,
	// oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Utterance, error)

	// RecentChildMessages returns up to limit most recent child texts, oldest first.
	RecentChildMessages(ctx context.Context, sessionID string, limit int) ([]string, error)

	// ListMessages pages a session's history newest first. A non-zero before
	// keeps only messages strictly older than it.
	ListMessages(ctx context.Context, sessionID string, limit int, before time.Time) ([]domain.StoredMessage, error)

	// StrategiesForEmotion joins emotion labels to strategies on a
	// case-insensitive name match, ordered by strategy name.
	StrategiesForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error)

	// ListStrategies returns the whole catalog ordered by strategy name.
	ListStrategies(ctx context.Context) ([]domain.CopingStrategy, error)

	// SeedCatalog upserts labels, strategies and their links in one transaction.
	SeedCatalog(ctx context.Context, c catalog.Catalog) error

	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs use
// pgx, anything else is treated as a SQLite path or sqlite: URI.
func Open(ctx context.Context, dsn string) (Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgres(ctx, dsn)
	}
	return NewSQLite(strings.TrimPrefix(dsn, "sqlite://"))
}

const (
	listStrategiesSQL = `
		SELECT strategy_id, strategy_name, COALESCE(strategy_desc, ''), COALESCE(strategy_duration, ''),
			strategy_requirements, COALESCE(strategy_instruction, ''), strategy_source, COALESCE(strategy_category, '')
		FROM strategy
		ORDER BY strategy_name ASC, strategy_id ASC`

	strategiesForEmotionSQL = `
		SELECT s.strategy_id, s.strategy_name, COALESCE(s.strategy_desc, ''), COALESCE(s.strategy_duration, ''),
			s.strategy_requirements, COALESCE(s.strategy_instruction, ''), s.strategy_source, COALESCE(s.strategy_category, '')
		FROM strategy s
		JOIN strategy_emotion se ON se.strategy_id = s.strategy_id
		JOIN emotion_label el ON el.emotion_id = se.emotion_id
		WHERE lower(el.name) = lower(%s)
		ORDER BY s.strategy_name ASC, s.strategy_id ASC`
)

// timestampLayout sorts lexically in chronological order, which the SQLite
// backend relies on.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func messageTime(u domain.Utterance) time.Time {
	if u.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return u.Timestamp.UTC()
}

func validRole(r domain.Role) bool {
	return r == domain.RoleChild || r == domain.RoleAssistant
}
