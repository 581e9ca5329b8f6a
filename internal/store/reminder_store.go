package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
)

// ReminderStore is the persistence boundary for reminders.
type ReminderStore interface {
	// FindAll returns every reminder, oldest first.
	FindAll(ctx context.Context) ([]domain.Reminder, error)
	// Get returns one reminder or ErrNotFound.
	Get(ctx context.Context, id string) (domain.Reminder, error)
	// Insert stores a new reminder; ErrConflict if the id exists.
	Insert(ctx context.Context, r domain.Reminder) error
	// UpdateSentAt sets sent_at once. A second call keeps the first value.
	UpdateSentAt(ctx context.Context, id string, at time.Time) error
	// Delete removes a reminder or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Options selects and configures a ReminderStore.
type Options struct {
	Driver      string // "sqlite" (default) or "postgres"
	Path        string // SQLite file, or MemoryPath
	DatabaseURL string // Postgres DSN
}

// OpenReminders opens the reminder store selected by opts.
func OpenReminders(ctx context.Context, opts Options, log *logging.Logger) (ReminderStore, error) {
	switch opts.Driver {
	case "", "sqlite":
		db, err := Open(opts.Path, log)
		if err != nil {
			return nil, err
		}
		return NewSQLiteReminderStore(db), nil
	case "postgres":
		return NewPostgresReminderStore(ctx, opts.DatabaseURL, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// SQLiteReminderStore implements ReminderStore on a DB.
type SQLiteReminderStore struct {
	db *DB
}

// NewSQLiteReminderStore creates a reminder store using the given database.
func NewSQLiteReminderStore(db *DB) *SQLiteReminderStore {
	return &SQLiteReminderStore{db: db}
}

const reminderColumns = `id, chat_id, produto, validade, dias_antes, created_at, sent_at`

func (s *SQLiteReminderStore) FindAll(ctx context.Context) ([]domain.Reminder, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
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

func (s *SQLiteReminderStore) Get(ctx context.Context, id string) (domain.Reminder, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *SQLiteReminderStore) Insert(ctx context.Context, r domain.Reminder) error {
	res, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO reminders (`+reminderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		r.ID, r.ChatID, r.Product, r.ExpiresOn, r.LeadDays,
		formatTime(r.CreatedAt), formatTimePtr(r.SentAt),
	)
	if err != nil {
		return fmt.Errorf("inserting reminder %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting reminder %s: %w", r.ID, err)
	}
	if n == 0 {
		return ErrConflict
	}
	s.db.log.Debug().Str("id", r.ID).Str("chat", r.ChatID).Msg("reminder inserted")
	return nil
}

func (s *SQLiteReminderStore) UpdateSentAt(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE reminders SET sent_at = ? WHERE id = ? AND sent_at IS NULL`,
		formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("marking reminder %s sent: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Nothing updated: either already sent or missing.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteReminderStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting reminder %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteReminderStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (domain.Reminder, error) {
	var (
		r       domain.Reminder
		created string
		sent    sql.NullString
	)
	if err := row.Scan(&r.ID, &r.ChatID, &r.Product, &r.ExpiresOn, &r.LeadDays, &created, &sent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning reminder: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if sent.Valid {
		t, err := time.Parse(time.RFC3339Nano, sent.String)
		if err == nil {
			r.SentAt = &t
		}
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
