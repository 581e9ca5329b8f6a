package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
)

// PostgresReminderStore implements ReminderStore on a pgx pool.
type PostgresReminderStore struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// NewPostgresReminderStore connects to databaseURL and ensures the schema.
func NewPostgresReminderStore(ctx context.Context, databaseURL string, log *logging.Logger) (*PostgresReminderStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("postgres storage requires a database URL")
	}
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initReminderSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	s := &PostgresReminderStore{pool: pool, log: log.Sub("store")}
	s.log.Info().Msg("postgres reminder store ready")
	return s, nil
}

func initReminderSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			produto TEXT NOT NULL,
			validade TEXT NOT NULL,
			dias_antes INTEGER NOT NULL CHECK (dias_antes BETWEEN 0 AND 3650),
			created_at TIMESTAMPTZ NOT NULL,
			sent_at TIMESTAMPTZ NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_chat ON reminders (chat_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders (validade) WHERE sent_at IS NULL;`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init reminder schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresReminderStore) FindAll(ctx context.Context) ([]domain.Reminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		r, err := scanPgReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading reminders: %w", err)
	}
	return out, nil
}

func (s *PostgresReminderStore) Get(ctx context.Context, id string) (domain.Reminder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	r, err := scanPgReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresReminderStore) Insert(ctx context.Context, r domain.Reminder) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO reminders (`+reminderColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.ChatID, r.Product, r.ExpiresOn, r.LeadDays, r.CreatedAt.UTC(), r.SentAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reminder %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresReminderStore) UpdateSentAt(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reminders SET sent_at = $1 WHERE id = $2 AND sent_at IS NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("marking reminder %s sent: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = s.Get(ctx, id)
	return err
}

func (s *PostgresReminderStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting reminder %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresReminderStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgReminder(row pgx.Row) (domain.Reminder, error) {
	var r domain.Reminder
	if err := row.Scan(&r.ID, &r.ChatID, &r.Product, &r.ExpiresOn, &r.LeadDays, &r.CreatedAt, &r.SentAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning reminder: %w", err)
	}
	return r, nil
}
