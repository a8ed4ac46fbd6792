// Package postgres implements store.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/vovakirdan/wiredm/internal/store"
)

const (
	MaxConns        = 10
	MinConns        = 2
	MaxConnLifetime = 10 * time.Minute
	MaxConnIdleTime = 5 * time.Minute
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPool parses databaseURL, applies pool limits and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	config.MaxConns = MaxConns
	config.MinConns = MinConns
	config.MaxConnLifetime = MaxConnLifetime
	config.MaxConnIdleTime = MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// New connects to databaseURL and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := Migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// NewFromPool wraps an existing pool. The store takes ownership of it.
func NewFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies all pending schema migrations through a database/sql
// handle borrowed from pool.
func Migrate(pool *pgxpool.Pool) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password and public key.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash, publicKey string) (*store.User, error) {
	query := `INSERT INTO users (id, username, password_hash, public_key)
              VALUES ($1, $2, $3, $4)
              RETURNING created_at`

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		PublicKey:    publicKey,
	}
	err := s.pool.QueryRow(ctx, query, user.ID, username, passwordHash, publicKey).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", username, store.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

const userColumns = `id, username, password_hash, public_key, online, last_seen, created_at`

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, excludeID string) ([]*store.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY username ASC`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserStatus(ctx context.Context, id string, online bool, at time.Time) error {
	result, err := s.pool.Exec(ctx, `UPDATE users SET online = $1, last_seen = $2 WHERE id = $3`, online, at, id)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ==== MessageStore implementation ====

func (s *PostgresStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `INSERT INTO messages (id, sender_id, recipient_id, cipher_text, wrapped_key, iv, created_at, read)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		msg.ID, msg.Sender, msg.Recipient,
		msg.CipherText, msg.WrappedKey, msg.IV,
		msg.CreatedAt, msg.Read,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", msg.ID, store.ErrConflict)
		}
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

const messageColumns = `id, sender_id, recipient_id, cipher_text, wrapped_key, iv, created_at, read`

const conversationFilter = `(sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)`

func (s *PostgresStore) ListConversation(ctx context.Context, a, b string, limit int) ([]*store.Message, error) {
	query := `SELECT * FROM (
                SELECT ` + messageColumns + `, seq FROM messages
                WHERE ` + conversationFilter + `
                ORDER BY created_at DESC, seq DESC
                LIMIT $3
              ) newest ORDER BY created_at ASC, seq ASC`

	rows, err := s.pool.Query(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows, true)
}

// FetchConversation returns the whole conversation and marks what reader
// received as read, atomically.
func (s *PostgresStore) FetchConversation(ctx context.Context, reader, peer string) ([]*store.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + messageColumns + ` FROM messages
              WHERE ` + conversationFilter + `
              ORDER BY created_at ASC, seq ASC
              FOR UPDATE`
	rows, err := tx.Query(ctx, query, reader, peer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	messages, err := scanMessages(rows, false)
	rows.Close()
	if err != nil {
		return nil, err
	}

	var unread []string
	for _, msg := range messages {
		if msg.Recipient == reader && !msg.Read {
			unread = append(unread, msg.ID)
		}
	}
	if len(unread) > 0 {
		_, err := tx.Exec(ctx,
			`UPDATE messages SET read = TRUE WHERE recipient_id = $1 AND NOT read AND id = ANY($2)`,
			reader, unread,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark read: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, recipient, from string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND NOT read`
	args := []any{recipient}
	if from != "" {
		query += ` AND sender_id = $2`
		args = append(args, from)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.PublicKey,
		&user.Online,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func scanMessages(rows pgx.Rows, withSeq bool) ([]*store.Message, error) {
	var messages []*store.Message
	for rows.Next() {
		var (
			msg store.Message
			seq int64
		)
		dest := []any{
			&msg.ID, &msg.Sender, &msg.Recipient,
			&msg.CipherText, &msg.WrappedKey, &msg.IV,
			&msg.CreatedAt, &msg.Read,
		}
		if withSeq {
			dest = append(dest, &seq)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
