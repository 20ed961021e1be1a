package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portfolio-contact/internal/domain"
	"portfolio-contact/internal/usecase"
)

// pgxAPI is the subset of *pgxpool.Pool used by PostgresClient.
type pgxAPI interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresClient reads and writes the messages table directly over the
// Postgres wire protocol. Supabase projects expose the same table this way.
type PostgresClient struct {
	db        pgxAPI
	listSQL   string
	insertSQL string
}

var _ usecase.MessageStore = (*PostgresClient)(nil)

// NewPool opens a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("repository: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository: ping: %w", err)
	}
	return pool, nil
}

func NewPostgres(db pgxAPI, table string) (*PostgresClient, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &PostgresClient{
		db: db,
		listSQL: `SELECT id::text, created_at, ip FROM ` + ident +
			` WHERE created_at >= $1 AND ip = $2 LIMIT $3`,
		insertSQL: `INSERT INTO ` + ident + ` (name, email, subject, message, ip)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id::text, created_at, name, email, subject, message, ip`,
	}, nil
}

// ListSince returns up to limit rows from ip created at or after since.
func (c *PostgresClient) ListSince(ctx context.Context, ip string, since time.Time, limit int) ([]domain.Message, error) {
	rows, err := c.db.Query(ctx, c.listSQL, since.UTC(), ip, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: ListSince query: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.IP); err != nil {
			return nil, fmt.Errorf("repository: ListSince scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: ListSince rows: %w", err)
	}
	return msgs, nil
}

// InsertMessage inserts one row and returns it as the database stored it,
// including the generated id and created_at.
func (c *PostgresClient) InsertMessage(ctx context.Context, msg domain.NewMessage) (domain.Message, error) {
	var m domain.Message
	err := c.db.QueryRow(ctx, c.insertSQL,
		msg.Name, msg.Email, msg.Subject, msg.Message, msg.IP,
	).Scan(&m.ID, &m.CreatedAt, &m.Name, &m.Email, &m.Subject, &m.Message, &m.IP)
	if err != nil {
		return domain.Message{}, &WriteError{Op: "InsertMessage", Err: err}
	}
	return m, nil
}
