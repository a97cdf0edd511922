package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"focusbot/app/core/remind"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:store-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	s, err := New(conn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestTasksLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.AddTask(ctx, "Kup mleko")
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	tasks, err := s.ActiveTasks(ctx)
	if err != nil {
		t.Fatalf("active tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Content != "Kup mleko" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	if err := s.MarkTaskDone(ctx, id); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := s.MarkTaskDone(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second mark done: err = %v, want ErrNotFound", err)
	}

	tasks, err = s.ActiveTasks(ctx)
	if err != nil {
		t.Fatalf("active tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("done task still active: %+v", tasks)
	}
}

func TestTaskNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.GetTask(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteTask(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateTaskContent(ctx, 99, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update: err = %v, want ErrNotFound", err)
	}
}

func TestDueRemindersOrderAndFlags(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	later, err := s.AddReminder(ctx, "później", now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	earlier, err := s.AddReminder(ctx, "wcześniej", now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	if _, err := s.AddReminder(ctx, "przyszłość", now.Add(time.Hour)); err != nil {
		t.Fatalf("add reminder: %v", err)
	}

	due, err := s.DueReminders(ctx, now)
	if err != nil {
		t.Fatalf("due reminders: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due count = %d, want 2", len(due))
	}
	if due[0].ID != earlier || due[1].ID != later {
		t.Fatalf("due order = [%d %d], want [%d %d]", due[0].ID, due[1].ID, earlier, later)
	}

	if err := s.MarkReminderSent(ctx, earlier); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	due, err = s.DueReminders(ctx, now)
	if err != nil {
		t.Fatalf("due reminders: %v", err)
	}
	if len(due) != 1 || due[0].ID != later {
		t.Fatalf("unexpected due set after mark: %+v", due)
	}
}

func TestRecurringRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	d := remind.Descriptor{Freq: remind.FreqWeekdaySet, Hour: 9, Minute: 30, Days: []int{0, 2, 4}}
	id, err := s.AddRecurring(ctx, "Standup", d, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("add recurring: %v", err)
	}

	got, err := s.GetRecurring(ctx, id)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if got.Schedule.Freq != remind.FreqWeekdaySet || got.Schedule.Hour != 9 || got.Schedule.Minute != 30 {
		t.Fatalf("schedule round trip broken: %+v", got.Schedule)
	}
	if len(got.Schedule.Days) != 3 || got.Schedule.Days[1] != 2 {
		t.Fatalf("days round trip broken: %v", got.Schedule.Days)
	}
	if !got.Active {
		t.Fatal("new recurring must be active")
	}

	due, err := s.DueRecurring(ctx, now)
	if err != nil {
		t.Fatalf("due recurring: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("unexpected due recurring: %+v", due)
	}

	next := now.Add(24 * time.Hour)
	if err := s.UpdateNextRun(ctx, id, next); err != nil {
		t.Fatalf("update next run: %v", err)
	}
	due, err = s.DueRecurring(ctx, now)
	if err != nil {
		t.Fatalf("due recurring: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("advanced recurring still due: %+v", due)
	}

	if err := s.DeleteRecurring(ctx, id); err != nil {
		t.Fatalf("delete recurring: %v", err)
	}
	if _, err := s.GetRecurring(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestAddRecurringRejectsInvalidDescriptor(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bad := remind.Descriptor{Freq: remind.FreqWeekdaySet, Hour: 9, Minute: 0}
	if _, err := s.AddRecurring(ctx, "x", bad, time.Now()); err == nil {
		t.Fatal("empty weekday set must be rejected")
	}
}
