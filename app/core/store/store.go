package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"focusbot/app/core/remind"
)

// ErrNotFound is returned when an id resolves to no stored item.
var ErrNotFound = errors.New("store: not found")

type Task struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Done      bool      `json:"done"`
}

type Idea struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Reminder struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	FireAt    time.Time `json:"fire_at"`
	Sent      bool      `json:"sent"`
	CreatedAt time.Time `json:"created_at"`
}

type Recurring struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	Schedule  remind.Descriptor `json:"schedule"`
	NextRun   time.Time         `json:"next_run"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
}

type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the sqlite database under dataDir and
// initializes the schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	conn, err := sql.Open("sqlite", filepath.Join(dataDir, "focusbot.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return New(conn)
}

// New wraps an existing connection; used by tests with an in-memory db.
func New(conn *sql.DB) (*Store, error) {
	if conn == nil {
		return nil, errors.New("store: db connection is required")
	}
	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			is_done INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ideas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			fire_at INTEGER NOT NULL,
			sent INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(sent, fire_at)`,
		`CREATE TABLE IF NOT EXISTS recurring (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			freq TEXT NOT NULL,
			at_hour INTEGER NOT NULL,
			at_minute INTEGER NOT NULL,
			days TEXT NOT NULL DEFAULT '',
			day_of_month INTEGER NOT NULL DEFAULT 0,
			next_run INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_due ON recurring(active, next_run)`,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

// --- tasks ---

func (s *Store) AddTask(ctx context.Context, content string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO tasks (content, created_at) VALUES (?, ?)`,
		content, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ActiveTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, created_at, is_done FROM tasks WHERE is_done = 0 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	var t Task
	var createdAt int64
	var done int
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, content, created_at, is_done FROM tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.Content, &createdAt, &done)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	t.Done = done != 0
	return t, nil
}

func (s *Store) MarkTaskDone(ctx context.Context, id int64) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`UPDATE tasks SET is_done = 1 WHERE id = ? AND is_done = 0`, id))
}

func (s *Store) UpdateTaskContent(ctx context.Context, id int64, content string) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`UPDATE tasks SET content = ? WHERE id = ?`, content, id))
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ?`, id))
}

// --- ideas ---

func (s *Store) AddIdea(ctx context.Context, content string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO ideas (content, created_at) VALUES (?, ?)`,
		content, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Ideas(ctx context.Context) ([]Idea, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, created_at FROM ideas ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Idea, 0)
	for rows.Next() {
		var item Idea
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.Content, &createdAt); err != nil {
			return nil, err
		}
		item.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetIdea(ctx context.Context, id int64) (Idea, error) {
	var item Idea
	var createdAt int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, content, created_at FROM ideas WHERE id = ?`, id).
		Scan(&item.ID, &item.Content, &createdAt)
	if err == sql.ErrNoRows {
		return Idea{}, ErrNotFound
	}
	if err != nil {
		return Idea{}, err
	}
	item.CreatedAt = time.Unix(createdAt, 0)
	return item, nil
}

func (s *Store) UpdateIdeaContent(ctx context.Context, id int64, content string) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`UPDATE ideas SET content = ? WHERE id = ?`, content, id))
}

func (s *Store) DeleteIdea(ctx context.Context, id int64) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`DELETE FROM ideas WHERE id = ?`, id))
}

// --- one-shot reminders ---

func (s *Store) AddReminder(ctx context.Context, content string, fireAt time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO reminders (content, fire_at, created_at) VALUES (?, ?, ?)`,
		content, fireAt.Unix(), time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DueReminders returns unsent reminders with fire_at <= now, oldest first.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, fire_at, sent, created_at FROM reminders
		 WHERE sent = 0 AND fire_at <= ? ORDER BY fire_at ASC, id ASC`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Store) PendingReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, fire_at, sent, created_at FROM reminders
		 WHERE sent = 0 ORDER BY fire_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`UPDATE reminders SET sent = 1 WHERE id = ?`, id))
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = ?`, id))
}

// --- recurring reminders ---

func (s *Store) AddRecurring(ctx context.Context, content string, d remind.Descriptor, nextRun time.Time) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO recurring (content, freq, at_hour, at_minute, days, day_of_month, next_run, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		content, string(d.Freq), d.Hour, d.Minute, d.EncodeDays(), d.DayOfMonth,
		nextRun.Unix(), time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DueRecurring returns active recurring reminders with next_run <= now.
func (s *Store) DueRecurring(ctx context.Context, now time.Time) ([]Recurring, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, freq, at_hour, at_minute, days, day_of_month, next_run, active, created_at
		 FROM recurring WHERE active = 1 AND next_run <= ? ORDER BY next_run ASC, id ASC`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecurring(rows)
}

func (s *Store) ActiveRecurring(ctx context.Context) ([]Recurring, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, freq, at_hour, at_minute, days, day_of_month, next_run, active, created_at
		 FROM recurring WHERE active = 1 ORDER BY next_run ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecurring(rows)
}

func (s *Store) GetRecurring(ctx context.Context, id int64) (Recurring, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, content, freq, at_hour, at_minute, days, day_of_month, next_run, active, created_at
		 FROM recurring WHERE id = ?`, id)
	if err != nil {
		return Recurring{}, err
	}
	defer rows.Close()
	items, err := scanRecurring(rows)
	if err != nil {
		return Recurring{}, err
	}
	if len(items) == 0 {
		return Recurring{}, ErrNotFound
	}
	return items[0], nil
}

func (s *Store) UpdateNextRun(ctx context.Context, id int64, nextRun time.Time) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`UPDATE recurring SET next_run = ? WHERE id = ?`, nextRun.Unix(), id))
}

func (s *Store) DeleteRecurring(ctx context.Context, id int64) error {
	return s.expectOneRow(s.conn.ExecContext(ctx,
		`DELETE FROM recurring WHERE id = ?`, id))
}

// --- helpers ---

func (s *Store) expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		var createdAt int64
		var done int
		if err := rows.Scan(&item.ID, &item.Content, &createdAt, &done); err != nil {
			return nil, err
		}
		item.CreatedAt = time.Unix(createdAt, 0)
		item.Done = done != 0
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	items := make([]Reminder, 0)
	for rows.Next() {
		var item Reminder
		var fireAt, createdAt int64
		var sent int
		if err := rows.Scan(&item.ID, &item.Content, &fireAt, &sent, &createdAt); err != nil {
			return nil, err
		}
		item.FireAt = time.Unix(fireAt, 0)
		item.Sent = sent != 0
		item.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanRecurring(rows *sql.Rows) ([]Recurring, error) {
	items := make([]Recurring, 0)
	for rows.Next() {
		var item Recurring
		var freq, days string
		var nextRun, createdAt int64
		var active int
		if err := rows.Scan(&item.ID, &item.Content, &freq, &item.Schedule.Hour, &item.Schedule.Minute,
			&days, &item.Schedule.DayOfMonth, &nextRun, &active, &createdAt); err != nil {
			return nil, err
		}
		decoded, err := remind.DecodeDays(days)
		if err != nil {
			return nil, err
		}
		item.Schedule.Freq = remind.Freq(freq)
		item.Schedule.Days = decoded
		item.NextRun = time.Unix(nextRun, 0)
		item.Active = active != 0
		item.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, item)
	}
	return items, rows.Err()
}
