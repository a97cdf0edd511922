package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"focusbot/app/core/remind"
	"focusbot/app/core/store"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local) // Monday

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:conv-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	st, err := store.New(conn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewEngine(st, fixedClock{now: testNow}), st
}

func TestTaskFlowViaAwaitingBody(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)

	reply := e.HandleInput(ctx, "chat", "/zadanie")
	if !strings.Contains(reply.Text, "treść zadania") {
		t.Fatalf("unexpected prompt: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateAwaitingTaskBody {
		t.Fatalf("state = %d, want AwaitingTaskBody", got)
	}

	reply = e.HandleInput(ctx, "chat", "Kup mleko")
	if reply.Text != "✅ Dodano: Kup mleko" {
		t.Fatalf("unexpected confirmation: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateIdle {
		t.Fatalf("state = %d, want Idle", got)
	}

	tasks, err := st.ActiveTasks(ctx)
	if err != nil {
		t.Fatalf("active tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Content != "Kup mleko" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestInlineCommandBypassesAwaitingState(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)

	reply := e.HandleInput(ctx, "chat", "/zadanie Umyć okna")
	if reply.Text != "✅ Dodano: Umyć okna" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateIdle {
		t.Fatalf("state = %d, want Idle", got)
	}
	tasks, _ := st.ActiveTasks(ctx)
	if len(tasks) != 1 {
		t.Fatalf("task not stored: %+v", tasks)
	}
}

func TestDoneFlow(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	id, _ := st.AddTask(ctx, "Zrobić pranie")

	reply := e.HandleInput(ctx, "chat", fmt.Sprintf("/zrobione %d", id))
	if !strings.Contains(reply.Text, "wykonane") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	reply = e.HandleInput(ctx, "chat", "/zrobione 999")
	if !strings.Contains(reply.Text, "Nie znaleziono") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	reply = e.HandleInput(ctx, "chat", "/zrobione abc")
	if !strings.Contains(reply.Text, "cyfrą") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestDeleteScenario(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	id, _ := st.AddTask(ctx, "Jedyne zadanie")

	e.HandleInput(ctx, "chat", "/usun")
	if got := e.Sessions().StateOf("chat"); got != StateAwaitingDeleteKind {
		t.Fatalf("state = %d, want AwaitingDeleteKind", got)
	}

	e.HandleInput(ctx, "chat", "z")
	if got := e.Sessions().StateOf("chat"); got != StateAwaitingDeleteIDs {
		t.Fatalf("state = %d, want AwaitingDeleteIDs", got)
	}

	reply := e.HandleInput(ctx, "chat", fmt.Sprintf("%d,99", id))
	if !strings.Contains(reply.Text, "Usunięte: "+fmt.Sprint(id)) {
		t.Fatalf("deleted group missing: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "Nie znaleziono: 99") {
		t.Fatalf("not-found group missing: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateIdle {
		t.Fatalf("state = %d, want Idle", got)
	}

	tasks, _ := st.ActiveTasks(ctx)
	if len(tasks) != 0 {
		t.Fatalf("task not deleted: %+v", tasks)
	}
}

func TestDeleteKindRePromptsOnUnknownToken(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.HandleInput(ctx, "chat", "/usun")
	reply := e.HandleInput(ctx, "chat", "cośinnego")
	if !strings.Contains(reply.Text, "Napisz: z") {
		t.Fatalf("expected re-prompt, got %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateAwaitingDeleteKind {
		t.Fatalf("state = %d, want AwaitingDeleteKind (unchanged)", got)
	}
}

func TestDeleteInvalidTokensReported(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.HandleInput(ctx, "chat", "/usun")
	e.HandleInput(ctx, "chat", "p")
	reply := e.HandleInput(ctx, "chat", "abc, 7")
	if !strings.Contains(reply.Text, "Niepoprawne: abc") {
		t.Fatalf("invalid group missing: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "Nie znaleziono: 7") {
		t.Fatalf("not-found group missing: %q", reply.Text)
	}
}

func TestEditFlow(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)
	id, _ := st.AddTask(ctx, "Stara treść")

	e.HandleInput(ctx, "chat", "/edytuj")
	e.HandleInput(ctx, "chat", "z")
	reply := e.HandleInput(ctx, "chat", fmt.Sprint(id))
	if !strings.Contains(reply.Text, "Stara treść") {
		t.Fatalf("current content not surfaced: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateAwaitingEditBody {
		t.Fatalf("state = %d, want AwaitingEditBody", got)
	}

	reply = e.HandleInput(ctx, "chat", "Nowa treść")
	if !strings.Contains(reply.Text, "Zaktualizowano") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	got, err := st.GetTask(ctx, id)
	if err != nil || got.Content != "Nowa treść" {
		t.Fatalf("content not updated: %+v, err=%v", got, err)
	}
	if state := e.Sessions().StateOf("chat"); state != StateIdle {
		t.Fatalf("state = %d, want Idle", state)
	}
}

func TestEditUnknownIDResetsToIdle(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.HandleInput(ctx, "chat", "/edytuj")
	e.HandleInput(ctx, "chat", "z")
	reply := e.HandleInput(ctx, "chat", "123")
	if !strings.Contains(reply.Text, "Nie znaleziono") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateIdle {
		t.Fatalf("state = %d, want Idle", got)
	}
}

func TestReminderOneShot(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)

	reply := e.HandleInput(ctx, "chat", "/przypomnij za 30m Kup mleko")
	if !strings.Contains(reply.Text, "Przypomnę") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	pending, err := st.PendingReminders(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Content != "Kup mleko" {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	want := testNow.Add(30 * time.Minute)
	if !pending[0].FireAt.Equal(want) {
		t.Fatalf("fire at = %s, want %s", pending[0].FireAt, want)
	}
}

func TestReminderRecurring(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)

	reply := e.HandleInput(ctx, "chat", "/przypomnij codziennie 08:00 Kawa")
	if !strings.Contains(reply.Text, "cykliczne") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	active, err := st.ActiveRecurring(ctx)
	if err != nil {
		t.Fatalf("active recurring: %v", err)
	}
	if len(active) != 1 || active[0].Schedule.Freq != remind.FreqDaily {
		t.Fatalf("unexpected recurring: %+v", active)
	}
	// 08:00 already passed at testNow (09:00), so the next run is tomorrow.
	want := time.Date(2024, 1, 2, 8, 0, 0, 0, time.Local)
	if !active[0].NextRun.Equal(want) {
		t.Fatalf("next run = %s, want %s", active[0].NextRun, want)
	}
}

func TestReminderBodyRePromptsOnParseFailure(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)

	e.HandleInput(ctx, "chat", "/przypomnij")
	reply := e.HandleInput(ctx, "chat", "poniedziatek 25:00 x")
	if !strings.Contains(reply.Text, "Nie rozpoznałem") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateAwaitingReminderBody {
		t.Fatalf("state = %d, want AwaitingReminderBody (retry allowed)", got)
	}

	reply = e.HandleInput(ctx, "chat", "17:30 Zadzwonić")
	if !strings.Contains(reply.Text, "Przypomnę") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	pending, _ := st.PendingReminders(ctx)
	if len(pending) != 1 {
		t.Fatalf("reminder not stored: %+v", pending)
	}
}

func TestIdleFreeTextGetsFixedReply(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	reply := e.HandleInput(ctx, "chat", "jakiś luźny tekst")
	if !strings.Contains(reply.Text, "Nie wiem co z tym zrobić") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if got := e.Sessions().StateOf("chat"); got != StateIdle {
		t.Fatalf("state = %d, want Idle", got)
	}
}

func TestStartResetsStateAndShowsMenu(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.HandleInput(ctx, "chat", "/usun")
	reply := e.HandleInput(ctx, "chat", "/start")
	if len(reply.Keyboard) == 0 {
		t.Fatal("menu keyboard missing")
	}
	if got := e.Sessions().StateOf("chat"); got != StateIdle {
		t.Fatalf("state = %d, want Idle", got)
	}
}

func TestKeyboardButtonLabelRoutesToCommand(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	reply := e.HandleInput(ctx, "chat", "📋 /lista")
	if !strings.Contains(reply.Text, "CENTRUM DOWODZENIA") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if !reply.Markdown {
		t.Fatal("list reply should carry the markdown hint")
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.HandleInput(ctx, "a", "/zadanie")
	if got := e.Sessions().StateOf("b"); got != StateIdle {
		t.Fatalf("other conversation state = %d, want Idle", got)
	}
	if got := e.Sessions().StateOf("a"); got != StateAwaitingTaskBody {
		t.Fatalf("state = %d, want AwaitingTaskBody", got)
	}
}
