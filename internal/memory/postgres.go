package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation history in PostgreSQL.
type PostgresStore struct {
	pool  *pgxpool.Pool
	locks keyedLocks
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_history (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			group_id TEXT,
			content TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_user_ts ON conversation_history (user_id, timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_group_ts ON conversation_history (group_id, timestamp DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Append writes the user and assistant halves of an exchange in one
// transaction. Concurrent turns for the same identity are serialized so
// pairs commit in submission order.
func (s *PostgresStore) Append(ctx context.Context, id Identity, userText, assistantText string) error {
	if id.UserID == "" {
		return fmt.Errorf("append: user id is required")
	}

	unlock := s.locks.lock(id.Key())
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	const insert = `INSERT INTO conversation_history (user_id, group_id, content, role, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, insert, id.UserID, nullable(id.GroupID), userText, RoleUser, now); err != nil {
		return fmt.Errorf("append user record: %w", err)
	}
	if _, err := tx.Exec(ctx, insert, id.UserID, nullable(id.GroupID), assistantText, RoleAssistant, now); err != nil {
		return fmt.Errorf("append assistant record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Recent fetches the balanced per-role window: up to limit recent user
// records and up to limit recent assistant records, independently, so one
// chatty role cannot crowd the other out of the context window.
func (s *PostgresStore) Recent(ctx context.Context, id Identity, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 6
	}

	const query = `SELECT id, user_id, COALESCE(group_id, ''), content, role, timestamp FROM (
		(SELECT id, user_id, group_id, content, role, timestamp
			FROM conversation_history
			WHERE user_id = $1 AND group_id IS NOT DISTINCT FROM $2 AND role = 'user'
			ORDER BY timestamp DESC LIMIT $3)
		UNION ALL
		(SELECT id, user_id, group_id, content, role, timestamp
			FROM conversation_history
			WHERE user_id = $1 AND group_id IS NOT DISTINCT FROM $2 AND role = 'assistant'
			ORDER BY timestamp DESC LIMIT $3)
	) merged ORDER BY timestamp ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, id.UserID, nullable(id.GroupID), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, 2*limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.GroupID, &r.Content, &r.Role, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// keyedLocks hands out one mutex per identity key.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
