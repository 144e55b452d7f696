package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meltforce/gymbot/internal/engine"
)

type fakeConversation struct {
	events []engine.Event
	reply  engine.Reply
	err    error
}

func (c *fakeConversation) Handle(ctx context.Context, ev engine.Event) (engine.Reply, error) {
	c.events = append(c.events, ev)
	return c.reply, c.err
}

type fakeSender struct {
	sent       []string
	edited     []string
	answered   []string
	editErr    error
	lastMarkup *InlineKeyboardMarkup
}

func (s *fakeSender) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) (int, error) {
	s.sent = append(s.sent, text)
	s.lastMarkup = kb
	return len(s.sent), nil
}

func (s *fakeSender) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *InlineKeyboardMarkup) error {
	if s.editErr != nil {
		return s.editErr
	}
	s.edited = append(s.edited, text)
	s.lastMarkup = kb
	return nil
}

func (s *fakeSender) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	s.answered = append(s.answered, callbackID)
	return nil
}

func postUpdate(t *testing.T, srv *Server, token string, update Update) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+token, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func newTestServer(conv *fakeConversation, sender *fakeSender) *Server {
	return New(conv, sender, "secret-token", slog.New(slog.DiscardHandler))
}

func TestWebhookRejectsWrongToken(t *testing.T) {
	conv := &fakeConversation{}
	srv := newTestServer(conv, &fakeSender{})

	rec := postUpdate(t, srv, "wrong-token", Update{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(conv.events) != 0 {
		t.Fatal("update with wrong token reached the conversation")
	}
}

func TestWebhookCommandMessage(t *testing.T) {
	conv := &fakeConversation{reply: engine.Reply{Text: "Welcome!"}}
	sender := &fakeSender{}
	srv := newTestServer(conv, sender)

	rec := postUpdate(t, srv, "secret-token", Update{Message: &Message{
		From: &User{ID: 7, Username: "alice"},
		Chat: Chat{ID: 70},
		Text: "/start_workout",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if len(conv.events) != 1 {
		t.Fatalf("events = %+v", conv.events)
	}
	ev := conv.events[0]
	if ev.Kind != engine.EventCommand || ev.Value != "start_workout" || ev.UserID != 7 || ev.ChatID != 70 {
		t.Fatalf("event = %+v", ev)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Welcome!" {
		t.Fatalf("sent = %+v", sender.sent)
	}
}

func TestWebhookFreeText(t *testing.T) {
	conv := &fakeConversation{reply: engine.Reply{Text: "ok"}}
	srv := newTestServer(conv, &fakeSender{})

	postUpdate(t, srv, "secret-token", Update{Message: &Message{
		From: &User{ID: 7},
		Chat: Chat{ID: 70},
		Text: "Leg Press 3 80 10",
	}})
	if conv.events[0].Kind != engine.EventText || conv.events[0].Value != "Leg Press 3 80 10" {
		t.Fatalf("event = %+v", conv.events[0])
	}
}

func TestWebhookCallbackEditsScreen(t *testing.T) {
	conv := &fakeConversation{reply: engine.Reply{
		Text:     "Choose an exercise:",
		Keyboard: [][]engine.Button{{{Label: "Squat", Tag: "ex_0"}}},
	}}
	sender := &fakeSender{}
	srv := newTestServer(conv, sender)

	postUpdate(t, srv, "secret-token", Update{CallbackQuery: &CallbackQuery{
		ID:      "cb-1",
		From:    User{ID: 7},
		Message: &Message{MessageID: 42, Chat: Chat{ID: 70}},
		Data:    "tmpl_1",
	}})

	if len(sender.answered) != 1 || sender.answered[0] != "cb-1" {
		t.Fatalf("answered = %+v", sender.answered)
	}
	if conv.events[0].Kind != engine.EventButton || conv.events[0].Value != "tmpl_1" {
		t.Fatalf("event = %+v", conv.events[0])
	}
	if len(sender.edited) != 1 || sender.edited[0] != "Choose an exercise:" {
		t.Fatalf("edited = %+v", sender.edited)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("callback should edit, not send: %+v", sender.sent)
	}
	if sender.lastMarkup == nil || sender.lastMarkup.InlineKeyboard[0][0].CallbackData != "ex_0" {
		t.Fatalf("markup = %+v", sender.lastMarkup)
	}
}

func TestWebhookCallbackEditFallsBackToSend(t *testing.T) {
	conv := &fakeConversation{reply: engine.Reply{Text: "screen"}}
	sender := &fakeSender{editErr: fmt.Errorf("message to edit not found")}
	srv := newTestServer(conv, sender)

	postUpdate(t, srv, "secret-token", Update{CallbackQuery: &CallbackQuery{
		ID:      "cb-2",
		From:    User{ID: 7},
		Message: &Message{MessageID: 42, Chat: Chat{ID: 70}},
		Data:    "skip",
	}})
	if len(sender.sent) != 1 || sender.sent[0] != "screen" {
		t.Fatalf("fallback send = %+v", sender.sent)
	}
}

func TestWebhookConversationErrorStaysQuiet(t *testing.T) {
	conv := &fakeConversation{err: fmt.Errorf(`unrecognized tag "junk"`)}
	sender := &fakeSender{}
	srv := newTestServer(conv, sender)

	rec := postUpdate(t, srv, "secret-token", Update{CallbackQuery: &CallbackQuery{
		ID:      "cb-3",
		From:    User{ID: 7},
		Message: &Message{MessageID: 42, Chat: Chat{ID: 70}},
		Data:    "junk",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on engine error", rec.Code)
	}
	if len(sender.edited) != 0 && len(sender.sent) != 0 {
		t.Fatal("reply delivered despite engine error")
	}
}

func TestWebhookInvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeConversation{}, &fakeSender{})
	req := httptest.NewRequest(http.MethodPost, "/webhook/secret-token", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeConversation{}, &fakeSender{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/start", "start", true},
		{"/start_workout", "start_workout", true},
		{"/history@gym_bot", "history", true},
		{"/done extra args", "done", true},
		{"hello", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseCommand(%q) = %q, %v, want %q, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}
