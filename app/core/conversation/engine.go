package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"focusbot/app/core/remind"
	"focusbot/app/core/store"
	"focusbot/app/pkg/logger"
	"focusbot/app/pkg/types"
)

const timeLayout = "02.01.2006 15:04"

// Store is everything the conversation engine needs from persistence.
// *store.Store satisfies it; tests may substitute their own.
type Store interface {
	AddTask(ctx context.Context, content string) (int64, error)
	ActiveTasks(ctx context.Context) ([]store.Task, error)
	GetTask(ctx context.Context, id int64) (store.Task, error)
	MarkTaskDone(ctx context.Context, id int64) error
	UpdateTaskContent(ctx context.Context, id int64, content string) error
	DeleteTask(ctx context.Context, id int64) error

	AddIdea(ctx context.Context, content string) (int64, error)
	Ideas(ctx context.Context) ([]store.Idea, error)
	GetIdea(ctx context.Context, id int64) (store.Idea, error)
	UpdateIdeaContent(ctx context.Context, id int64, content string) error
	DeleteIdea(ctx context.Context, id int64) error

	AddReminder(ctx context.Context, content string, fireAt time.Time) (int64, error)
	PendingReminders(ctx context.Context) ([]store.Reminder, error)

	AddRecurring(ctx context.Context, content string, d remind.Descriptor, nextRun time.Time) (int64, error)
	ActiveRecurring(ctx context.Context) ([]store.Recurring, error)
	DeleteRecurring(ctx context.Context, id int64) error
}

var menuKeyboard = [][]string{
	{"📋 /lista"},
	{"📌 /zadanie", "💡 /pomysl"},
	{"✅ /zrobione"},
	{"⏰ /przypomnij", "🔁 /cykliczne"},
	{"🗑 /usun", "✏️ /edytuj"},
}

const reminderFormats = "za 30m Kup mleko\n" +
	"17:30 Zadzwonić do mamy\n" +
	"codziennie 08:00 Kawa\n" +
	"pon-pt 09:00 Standup\n" +
	"co tydzień pon 10:00 Raport\n" +
	"pon,śr,pt 07:00 Siłownia\n" +
	"co miesiąc 10 12:00 Czynsz"

// Engine is the conversation state machine. One store mutation (or zero,
// on validation failure) and exactly one reply per input.
type Engine struct {
	store    Store
	clock    types.Clock
	sessions *Sessions
}

func NewEngine(st Store, clock types.Clock) *Engine {
	return &Engine{store: st, clock: clock, sessions: NewSessions()}
}

// Sessions exposes the keyed state store for tests and diagnostics.
func (e *Engine) Sessions() *Sessions {
	return e.sessions
}

// HandleInput interprets one inbound message for one conversation.
// Inputs for the same conversation are processed strictly sequentially.
func (e *Engine) HandleInput(ctx context.Context, conversationID, text string) types.Reply {
	sess := e.sessions.get(conversationID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if cmd, args, ok := parseCommand(text); ok {
		return e.handleCommand(ctx, sess, cmd, args)
	}
	return e.handleText(ctx, sess, strings.TrimSpace(text))
}

// parseCommand extracts a /command and its inline arguments. Keyboard
// button labels carry a short emoji prefix before the command, so the
// command token may also sit second.
func parseCommand(text string) (string, string, bool) {
	fields := strings.Fields(text)
	idx := -1
	switch {
	case len(fields) > 0 && strings.HasPrefix(fields[0], "/"):
		idx = 0
	case len(fields) > 1 && strings.HasPrefix(fields[1], "/") &&
		!strings.Contains(fields[0], "/") && utf8.RuneCountInString(fields[0]) <= 2:
		idx = 1
	}
	if idx < 0 {
		return "", "", false
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[idx], "/"))
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", "", false
	}
	return cmd, strings.Join(fields[idx+1:], " "), true
}

func (e *Engine) handleCommand(ctx context.Context, sess *session, cmd, args string) types.Reply {
	switch cmd {
	case "start":
		sess.reset()
		return types.Reply{
			Text:     "👋 Cześć Szefie! Wybierz co chcesz zrobić.",
			Keyboard: menuKeyboard,
		}

	case "zadanie":
		if args != "" {
			sess.reset()
			return e.addTask(ctx, args)
		}
		sess.state = StateAwaitingTaskBody
		return types.Reply{Text: "✍️ Napisz treść zadania:"}

	case "pomysl", "pomysł":
		if args != "" {
			sess.reset()
			return e.addIdea(ctx, args)
		}
		sess.state = StateAwaitingIdeaBody
		return types.Reply{Text: "🧠 Napisz swój pomysł:"}

	case "zrobione":
		if args != "" {
			sess.reset()
			return e.markDone(ctx, strings.Fields(args)[0])
		}
		sess.state = StateAwaitingDoneID
		return types.Reply{Text: "🔢 Podaj numer zadania do odhaczenia:"}

	case "lista":
		sess.reset()
		return e.listDigest(ctx)

	case "usun", "usuń":
		fields := strings.Fields(args)
		switch {
		case len(fields) == 0:
			sess.state = StateAwaitingDeleteKind
			return types.Reply{Text: "🗑 Co usunąć? Napisz: z (zadanie), p (pomysł) lub c (cykliczne)."}
		default:
			kind, ok := resolveKind(fields[0], true)
			if !ok {
				sess.reset()
				return types.Reply{Text: "⚠️ Nie znam takiego rodzaju. Użyj: z, p lub c."}
			}
			if len(fields) == 1 {
				sess.state = StateAwaitingDeleteIDs
				sess.kind = kind
				return types.Reply{Text: "🔢 Podaj numery do usunięcia (np. 1,2,3):"}
			}
			sess.reset()
			return e.deleteByIDs(ctx, kind, strings.Join(fields[1:], " "))
		}

	case "edytuj":
		fields := strings.Fields(args)
		switch {
		case len(fields) == 0:
			sess.state = StateAwaitingEditKind
			return types.Reply{Text: "✏️ Co edytować? Napisz: z (zadanie) lub p (pomysł)."}
		default:
			kind, ok := resolveKind(fields[0], false)
			if !ok {
				sess.reset()
				return types.Reply{Text: "⚠️ Nie znam takiego rodzaju. Użyj: z lub p."}
			}
			if len(fields) == 1 {
				sess.state = StateAwaitingEditID
				sess.kind = kind
				return types.Reply{Text: "🔢 Podaj numer do edycji:"}
			}
			if len(fields) == 2 {
				sess.kind = kind
				return e.beginEditBody(ctx, sess, fields[1])
			}
			sess.reset()
			return e.editInline(ctx, kind, fields[1], strings.Join(fields[2:], " "))
		}

	case "przypomnij":
		if args != "" {
			sess.reset()
			reply, _ := e.createReminder(ctx, args)
			return reply
		}
		sess.state = StateAwaitingReminderBody
		return types.Reply{Text: "⏰ Napisz kiedy i co przypomnieć, np.:\n" + reminderFormats}

	case "cykliczne":
		sess.reset()
		return e.reminderDigest(ctx)

	default:
		sess.reset()
		return types.Reply{Text: "🤔 Nieznana komenda. Użyj /start, aby zobaczyć menu."}
	}
}

func (e *Engine) handleText(ctx context.Context, sess *session, text string) types.Reply {
	switch sess.state {
	case StateIdle:
		return types.Reply{Text: "🤔 Nie wiem co z tym zrobić. Wybierz opcję z menu."}

	case StateAwaitingTaskBody:
		sess.reset()
		return e.addTask(ctx, text)

	case StateAwaitingIdeaBody:
		sess.reset()
		return e.addIdea(ctx, text)

	case StateAwaitingDoneID:
		sess.reset()
		return e.markDone(ctx, text)

	case StateAwaitingDeleteKind:
		kind, ok := resolveKind(text, true)
		if !ok {
			// Re-prompt, state unchanged.
			return types.Reply{Text: "⚠️ Napisz: z (zadanie), p (pomysł) lub c (cykliczne)."}
		}
		sess.state = StateAwaitingDeleteIDs
		sess.kind = kind
		return types.Reply{Text: "🔢 Podaj numery do usunięcia (np. 1,2,3):"}

	case StateAwaitingDeleteIDs:
		kind := sess.kind
		sess.reset()
		return e.deleteByIDs(ctx, kind, text)

	case StateAwaitingEditKind:
		kind, ok := resolveKind(text, false)
		if !ok {
			return types.Reply{Text: "⚠️ Napisz: z (zadanie) lub p (pomysł)."}
		}
		sess.state = StateAwaitingEditID
		sess.kind = kind
		return types.Reply{Text: "🔢 Podaj numer do edycji:"}

	case StateAwaitingEditID:
		return e.beginEditBody(ctx, sess, text)

	case StateAwaitingEditBody:
		kind, id := sess.kind, sess.editID
		sess.reset()
		return e.editApply(ctx, kind, id, text)

	case StateAwaitingReminderBody:
		reply, recognized := e.createReminder(ctx, text)
		if recognized {
			sess.reset()
		}
		// On a parse failure the state stays so the user can retry.
		return reply

	default:
		sess.reset()
		return types.Reply{Text: "🤔 Nie wiem co z tym zrobić. Wybierz opcję z menu."}
	}
}

// --- command bodies ---

func (e *Engine) addTask(ctx context.Context, content string) types.Reply {
	if _, err := e.store.AddTask(ctx, content); err != nil {
		return e.storeFailure("add task", err)
	}
	return types.Reply{Text: "✅ Dodano: " + content}
}

func (e *Engine) addIdea(ctx context.Context, content string) types.Reply {
	if _, err := e.store.AddIdea(ctx, content); err != nil {
		return e.storeFailure("add idea", err)
	}
	return types.Reply{Text: "💡 Zapisano: " + content}
}

func (e *Engine) markDone(ctx context.Context, token string) types.Reply {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return types.Reply{Text: "⚠️ Numer musi być cyfrą."}
	}
	switch err := e.store.MarkTaskDone(ctx, id); {
	case err == nil:
		return types.Reply{Text: fmt.Sprintf("🎉 Brawo! Zadanie #%d wykonane.", id)}
	case errors.Is(err, store.ErrNotFound):
		return types.Reply{Text: fmt.Sprintf("❌ Nie znaleziono zadania o ID %d.", id)}
	default:
		return e.storeFailure("mark done", err)
	}
}

func (e *Engine) listDigest(ctx context.Context) types.Reply {
	tasks, err := e.store.ActiveTasks(ctx)
	if err != nil {
		return e.storeFailure("list tasks", err)
	}
	ideas, err := e.store.Ideas(ctx)
	if err != nil {
		return e.storeFailure("list ideas", err)
	}

	var b strings.Builder
	b.WriteString("📋 *CENTRUM DOWODZENIA*\n\n")
	b.WriteString("📌 *ZADANIA:*\n")
	if len(tasks) == 0 {
		b.WriteString("(pusto)\n")
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "`%d`. %s\n", t.ID, t.Content)
	}
	b.WriteString("\n💡 *POMYSŁY:*\n")
	if len(ideas) == 0 {
		b.WriteString("(pusto)\n")
	}
	for _, i := range ideas {
		fmt.Fprintf(&b, "- %s\n", i.Content)
	}
	return types.Reply{Text: strings.TrimRight(b.String(), "\n"), Markdown: true}
}

func (e *Engine) reminderDigest(ctx context.Context) types.Reply {
	recurring, err := e.store.ActiveRecurring(ctx)
	if err != nil {
		return e.storeFailure("list recurring", err)
	}
	pending, err := e.store.PendingReminders(ctx)
	if err != nil {
		return e.storeFailure("list reminders", err)
	}

	var b strings.Builder
	b.WriteString("🔁 *CYKLICZNE:*\n")
	if len(recurring) == 0 {
		b.WriteString("(pusto)\n")
	}
	for _, r := range recurring {
		fmt.Fprintf(&b, "`%d`. %s — %s (najbliższe %s)\n",
			r.ID, r.Content, r.Schedule.Describe(), r.NextRun.Format(timeLayout))
	}
	b.WriteString("\n⏰ *JEDNORAZOWE:*\n")
	if len(pending) == 0 {
		b.WriteString("(pusto)\n")
	}
	for _, r := range pending {
		fmt.Fprintf(&b, "`%d`. %s — %s\n", r.ID, r.Content, r.FireAt.Format(timeLayout))
	}
	return types.Reply{Text: strings.TrimRight(b.String(), "\n"), Markdown: true}
}

// deleteByIDs deletes every id token in a single pass and reports the
// outcome per group. Unparseable tokens never abort the rest.
func (e *Engine) deleteByIDs(ctx context.Context, kind Kind, raw string) types.Reply {
	tokens := splitIDTokens(raw)
	if len(tokens) == 0 {
		return types.Reply{Text: "⚠️ Nie podano numerów."}
	}

	var deleted, notFound, invalid []string
	for _, token := range tokens {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			invalid = append(invalid, token)
			continue
		}
		switch err := e.deleteOne(ctx, kind, id); {
		case err == nil:
			deleted = append(deleted, token)
		case errors.Is(err, store.ErrNotFound):
			notFound = append(notFound, token)
		default:
			logger.Error("delete %s %d: %v", kind, id, err)
			notFound = append(notFound, token)
		}
	}

	var lines []string
	if len(deleted) > 0 {
		lines = append(lines, "🗑 Usunięte: "+strings.Join(deleted, ", "))
	}
	if len(notFound) > 0 {
		lines = append(lines, "❓ Nie znaleziono: "+strings.Join(notFound, ", "))
	}
	if len(invalid) > 0 {
		lines = append(lines, "⚠️ Niepoprawne: "+strings.Join(invalid, ", "))
	}
	return types.Reply{Text: strings.Join(lines, "\n")}
}

func (e *Engine) deleteOne(ctx context.Context, kind Kind, id int64) error {
	switch kind {
	case KindTask:
		return e.store.DeleteTask(ctx, id)
	case KindIdea:
		return e.store.DeleteIdea(ctx, id)
	case KindRecurring:
		return e.store.DeleteRecurring(ctx, id)
	}
	return store.ErrNotFound
}

// beginEditBody looks the item up, surfaces its current content and moves
// to the awaiting-body step. Bad ids reset the flow.
func (e *Engine) beginEditBody(ctx context.Context, sess *session, token string) types.Reply {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		sess.reset()
		return types.Reply{Text: "⚠️ To nie jest numer."}
	}

	content, err := e.currentContent(ctx, sess.kind, id)
	switch {
	case err == nil:
		sess.state = StateAwaitingEditBody
		sess.editID = id
		return types.Reply{Text: "✏️ Obecna treść:\n" + content + "\n\nNapisz nową treść:"}
	case errors.Is(err, store.ErrNotFound):
		sess.reset()
		return types.Reply{Text: fmt.Sprintf("❌ Nie znaleziono pozycji o ID %d.", id)}
	default:
		sess.reset()
		return e.storeFailure("edit lookup", err)
	}
}

func (e *Engine) currentContent(ctx context.Context, kind Kind, id int64) (string, error) {
	switch kind {
	case KindTask:
		t, err := e.store.GetTask(ctx, id)
		return t.Content, err
	case KindIdea:
		i, err := e.store.GetIdea(ctx, id)
		return i.Content, err
	}
	return "", store.ErrNotFound
}

func (e *Engine) editApply(ctx context.Context, kind Kind, id int64, content string) types.Reply {
	var err error
	switch kind {
	case KindTask:
		err = e.store.UpdateTaskContent(ctx, id, content)
	case KindIdea:
		err = e.store.UpdateIdeaContent(ctx, id, content)
	default:
		err = store.ErrNotFound
	}
	switch {
	case err == nil:
		return types.Reply{Text: "✅ Zaktualizowano."}
	case errors.Is(err, store.ErrNotFound):
		return types.Reply{Text: fmt.Sprintf("❌ Nie znaleziono pozycji o ID %d.", id)}
	default:
		return e.storeFailure("edit apply", err)
	}
}

func (e *Engine) editInline(ctx context.Context, kind Kind, token, content string) types.Reply {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return types.Reply{Text: "⚠️ To nie jest numer."}
	}
	return e.editApply(ctx, kind, id, content)
}

// createReminder routes text through the one-shot parser first, then the
// recurring one. The second return reports whether a schedule was
// recognized at all (the caller keeps the awaiting state when it wasn't).
func (e *Engine) createReminder(ctx context.Context, text string) (types.Reply, bool) {
	now := e.clock.Now()

	if at, content, ok := remind.ParseOneShot(text, now); ok {
		if content == "" {
			return types.Reply{Text: "⚠️ Brak treści przypomnienia."}, true
		}
		if _, err := e.store.AddReminder(ctx, content, at); err != nil {
			return e.storeFailure("add reminder", err), true
		}
		return types.Reply{Text: fmt.Sprintf("⏰ Przypomnę %s: %s", at.Format(timeLayout), content)}, true
	}

	if d, content, ok := remind.ParseRecurring(text); ok {
		if content == "" {
			return types.Reply{Text: "⚠️ Brak treści przypomnienia."}, true
		}
		next := remind.NextRun(d, now)
		if _, err := e.store.AddRecurring(ctx, content, d, next); err != nil {
			return e.storeFailure("add recurring", err), true
		}
		return types.Reply{Text: fmt.Sprintf("🔁 Dodano cykliczne (%s): %s\nNajbliższe: %s",
			d.Describe(), content, next.Format(timeLayout))}, true
	}

	return types.Reply{Text: "🤔 Nie rozpoznałem terminu. Przykłady:\n" + reminderFormats}, false
}

func (e *Engine) storeFailure(op string, err error) types.Reply {
	logger.Error("conversation: %s: %v", op, err)
	return types.Reply{Text: "⚠️ Coś poszło nie tak. Spróbuj ponownie."}
}

func splitIDTokens(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
