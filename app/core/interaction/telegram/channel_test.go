package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"focusbot/app/pkg/types"
)

func TestPollOnceDispatchesMessage(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": []map[string]interface{}{
				{
					"update_id": 101,
					"message": map[string]interface{}{
						"message_id": 77,
						"text":       "/lista",
						"date":       1704103200,
						"from":       map[string]interface{}{"id": 11},
						"chat":       map[string]interface{}{"id": 22},
					},
				},
			},
		})
	}))
	defer server.Close()

	ch := NewChannel(Config{BotToken: "token", APIRoot: server.URL})
	ch.handler = func(msg types.Message) {
		called = true
		if msg.ChatID != "22" {
			t.Fatalf("unexpected chat id: %s", msg.ChatID)
		}
		if msg.Text != "/lista" {
			t.Fatalf("unexpected text: %q", msg.Text)
		}
		if msg.RequestID == "" {
			t.Fatal("request id missing")
		}
	}

	if err := ch.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !called {
		t.Fatal("expected handler call")
	}
	if got := ch.offset; got != 102 {
		t.Fatalf("offset = %d, want 102", got)
	}
}

func TestSendMessageWithHints(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["chat_id"] != "22" {
			t.Fatalf("unexpected chat id: %v", payload["chat_id"])
		}
		if payload["parse_mode"] != "Markdown" {
			t.Fatalf("parse mode missing: %v", payload)
		}
		markup, ok := payload["reply_markup"].(map[string]interface{})
		if !ok || markup["resize_keyboard"] != true {
			t.Fatalf("reply markup missing: %v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": map[string]interface{}{}})
	}))
	defer server.Close()

	ch := NewChannel(Config{BotToken: "token", APIRoot: server.URL})
	err := ch.Send(context.Background(), "22", types.Reply{
		Text:     "menu",
		Markdown: true,
		Keyboard: [][]string{{"📋 /lista"}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !called {
		t.Fatal("expected API call")
	}
}

func TestSendReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "bad token"})
	}))
	defer server.Close()

	ch := NewChannel(Config{BotToken: "token", APIRoot: server.URL})
	err := ch.Send(context.Background(), "22", types.Reply{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "bad token") {
		t.Fatalf("err = %v, want api error", err)
	}
}

func TestOffsetStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.db")

	s, err := OpenOffsetStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Save(4242); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenOffsetStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != 4242 {
		t.Fatalf("offset = %d, want 4242", got)
	}
}

func TestOffsetStoreEmptyLoad(t *testing.T) {
	s, err := OpenOffsetStore(filepath.Join(t.TempDir(), "offsets.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	got, err := s.Load()
	if err != nil || got != 0 {
		t.Fatalf("load = (%d, %v), want (0, nil)", got, err)
	}
}
