package conversation

import (
	"strings"
	"sync"
)

// State is the pending-input expectation for one conversation. It decides
// what the next free-text message means.
type State int

const (
	StateIdle State = iota
	StateAwaitingTaskBody
	StateAwaitingIdeaBody
	StateAwaitingDoneID
	StateAwaitingDeleteKind
	StateAwaitingDeleteIDs
	StateAwaitingEditKind
	StateAwaitingEditID
	StateAwaitingEditBody
	StateAwaitingReminderBody
)

// Kind selects which collection a delete/edit flow operates on.
type Kind int

const (
	KindTask Kind = iota
	KindIdea
	KindRecurring
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "zadanie"
	case KindIdea:
		return "pomysł"
	case KindRecurring:
		return "cykliczne"
	}
	return "?"
}

// resolveKind maps a user token to a Kind. Recurring is only offered in
// the delete flow; edit covers tasks and ideas.
func resolveKind(token string, allowRecurring bool) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "z", "zad", "zadanie", "zadania":
		return KindTask, true
	case "p", "pomysl", "pomysł", "pomysly", "pomysły":
		return KindIdea, true
	case "c", "cykliczne", "przypomnienie", "przypomnienia":
		if allowRecurring {
			return KindRecurring, true
		}
	}
	return 0, false
}

// session is the per-conversation mutable cell. The mutex makes inputs
// from one conversation strictly sequential; sessions for different
// conversations never share state.
type session struct {
	mu     sync.Mutex
	state  State
	kind   Kind
	editID int64
}

func (s *session) reset() {
	s.state = StateIdle
	s.kind = KindTask
	s.editID = 0
}

// Sessions is the keyed conversation-state store. Sessions are created
// lazily and live only as long as the process; losing in-flight dialogs
// on restart is accepted.
type Sessions struct {
	mu     sync.Mutex
	byChat map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{byChat: make(map[string]*session)}
}

func (s *Sessions) get(conversationID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byChat[conversationID]
	if !ok {
		sess = &session{}
		s.byChat[conversationID] = sess
	}
	return sess
}

// StateOf reports the current state for tests and diagnostics.
func (s *Sessions) StateOf(conversationID string) State {
	sess := s.get(conversationID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}
