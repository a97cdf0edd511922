package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"focusbot/app/core/remind"
	"focusbot/app/core/store"
	"focusbot/app/pkg/logger"
	"focusbot/app/pkg/types"
)

// Store is the slice of persistence the dispatcher needs.
type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]store.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64) error
	DueRecurring(ctx context.Context, now time.Time) ([]store.Recurring, error)
	UpdateNextRun(ctx context.Context, id int64, nextRun time.Time) error
	ActiveTasks(ctx context.Context) ([]store.Task, error)
}

// Dispatcher fires due reminders. Notification happens before the state
// update, so a crash in between means the reminder fires again on the
// next sweep: at-least-once, never at-most-zero.
type Dispatcher struct {
	store    Store
	clock    types.Clock
	notifier types.Notifier

	notifyTimeout time.Duration

	briefing     *remind.Descriptor
	briefingNext time.Time
}

type Option func(*Dispatcher)

// WithNotifyTimeout bounds each Notifier call; a timeout counts as a
// delivery failure for that item only.
func WithNotifyTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.notifyTimeout = d
		}
	}
}

// WithMorningBriefing enables the daily task digest at the given HH:MM.
func WithMorningBriefing(hhmm string) Option {
	return func(disp *Dispatcher) {
		d, err := parseBriefingTime(hhmm)
		if err != nil {
			logger.Error("dispatch: briefing disabled: %v", err)
			return
		}
		disp.briefing = &d
	}
}

func New(st Store, clock types.Clock, notifier types.Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:         st,
		clock:         clock,
		notifier:      notifier,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sweep runs one dispatch cycle: the one-shot sweep, the recurring sweep
// and the briefing check. The sweeps are independent; a delivery failure
// for one item never aborts the rest.
func (d *Dispatcher) Sweep(ctx context.Context) error {
	now := d.clock.Now()
	d.sweepOneShot(ctx, now)
	d.sweepRecurring(ctx, now)
	d.sweepBriefing(ctx, now)
	return ctx.Err()
}

func (d *Dispatcher) sweepOneShot(ctx context.Context, now time.Time) {
	due, err := d.store.DueReminders(ctx, now)
	if err != nil {
		logger.Error("dispatch: due reminders: %v", err)
		return
	}
	for _, r := range due {
		if err := d.notify(ctx, types.Reply{
			Text:     "⏰ *PRZYPOMNIENIE*\n\n" + r.Content,
			Markdown: true,
		}); err != nil {
			logger.Error("dispatch: reminder %d delivery failed: %v", r.ID, err)
			continue
		}
		if err := d.store.MarkReminderSent(ctx, r.ID); err != nil {
			logger.Error("dispatch: mark reminder %d sent: %v", r.ID, err)
		}
	}
}

func (d *Dispatcher) sweepRecurring(ctx context.Context, now time.Time) {
	due, err := d.store.DueRecurring(ctx, now)
	if err != nil {
		logger.Error("dispatch: due recurring: %v", err)
		return
	}
	for _, r := range due {
		if err := d.notify(ctx, types.Reply{
			Text:     "🔁 *PRZYPOMNIENIE*\n\n" + r.Content,
			Markdown: true,
		}); err != nil {
			logger.Error("dispatch: recurring %d delivery failed: %v", r.ID, err)
			continue
		}
		// NextRun is strictly after now, so occurrences missed during
		// downtime coalesce into this single catch-up fire.
		next := remind.NextRun(r.Schedule, now)
		if err := d.store.UpdateNextRun(ctx, r.ID, next); err != nil {
			logger.Error("dispatch: advance recurring %d: %v", r.ID, err)
		}
	}
}

func (d *Dispatcher) sweepBriefing(ctx context.Context, now time.Time) {
	if d.briefing == nil {
		return
	}
	if d.briefingNext.IsZero() {
		d.briefingNext = remind.NextRun(*d.briefing, now)
		return
	}
	if now.Before(d.briefingNext) {
		return
	}
	d.briefingNext = remind.NextRun(*d.briefing, now)

	tasks, err := d.store.ActiveTasks(ctx)
	if err != nil {
		logger.Error("dispatch: briefing tasks: %v", err)
		return
	}
	if err := d.notify(ctx, briefingReply(tasks)); err != nil {
		logger.Error("dispatch: briefing delivery failed: %v", err)
	}
}

func (d *Dispatcher) notify(ctx context.Context, reply types.Reply) error {
	notifyCtx, cancel := context.WithTimeout(ctx, d.notifyTimeout)
	defer cancel()
	return d.notifier.Notify(notifyCtx, reply)
}

func briefingReply(tasks []store.Task) types.Reply {
	if len(tasks) == 0 {
		return types.Reply{Text: "☀️ Dzień dobry! Czysta karta na dziś."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "☀️ *PORANNY RAPORT*\n\nMasz %d zadań:\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "`%d`. %s\n", t.ID, t.Content)
	}
	b.WriteString("\nUżyj `/zrobione <nr>`, aby odhaczyć.")
	return types.Reply{Text: b.String(), Markdown: true}
}

func parseBriefingTime(hhmm string) (remind.Descriptor, error) {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	if len(parts) != 2 {
		return remind.Descriptor{}, fmt.Errorf("invalid briefing time %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return remind.Descriptor{}, fmt.Errorf("invalid briefing time %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return remind.Descriptor{}, fmt.Errorf("invalid briefing time %q", hhmm)
	}
	d := remind.Descriptor{Freq: remind.FreqDaily, Hour: hour, Minute: minute}
	if err := d.Validate(); err != nil {
		return remind.Descriptor{}, err
	}
	return d, nil
}
