package telegram

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/gymbot/internal/engine"
)

// Conversation processes one normalized event and returns the next screen.
type Conversation interface {
	Handle(ctx context.Context, ev engine.Event) (engine.Reply, error)
}

// Sender is the outbound half of the Bot API used by the webhook handler.
// *Client satisfies it.
type Sender interface {
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Server receives Telegram webhook updates, translates them into engine
// events, and delivers the replies back to the chat.
type Server struct {
	conv   Conversation
	client Sender
	token  string
	log    *slog.Logger
	router chi.Router
}

// New creates a Server with all routes configured.
func New(conv Conversation, client Sender, token string, log *slog.Logger) *Server {
	s := &Server{
		conv:   conv,
		client: client,
		token:  token,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// The token in the path is the shared secret: only Telegram knows it.
	s.router.Post("/webhook/{token}", s.handleUpdate)
}

// Mount attaches an extra handler subtree, used for the MCP endpoint. No
// auth: the deployment fronts it with tsnet or keeps the port private.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != s.token {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	// Always acknowledge with 200: a non-2xx makes Telegram redeliver the
	// same update, which would replay button presses.
	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(r.Context(), update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(r.Context(), update.Message)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if err := s.client.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		s.log.Warn("answering callback failed", "error", err)
	}
	if cb.Message == nil {
		return
	}

	ev := engine.Event{
		Kind:     engine.EventButton,
		UserID:   cb.From.ID,
		ChatID:   cb.Message.Chat.ID,
		Username: cb.From.Username,
		Value:    cb.Data,
	}
	reply, err := s.conv.Handle(ctx, ev)
	if err != nil {
		s.log.Warn("unhandled callback", "user", cb.From.ID, "data", cb.Data, "error", err)
		return
	}

	// Edit the screen in place; a message that got deleted or expired falls
	// back to a fresh one.
	chatID := cb.Message.Chat.ID
	msgID := int(cb.Message.MessageID)
	if err := s.client.EditMessage(ctx, chatID, msgID, reply.Text, keyboardMarkup(reply.Keyboard)); err != nil {
		s.log.Warn("editing screen failed", "user", cb.From.ID, "error", err)
		if _, err := s.client.SendMessageWithKeyboard(ctx, chatID, reply.Text, keyboardMarkup(reply.Keyboard)); err != nil {
			s.log.Error("sending reply failed", "user", cb.From.ID, "error", err)
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}

	ev := engine.Event{
		UserID:   msg.From.ID,
		ChatID:   msg.Chat.ID,
		Username: msg.From.Username,
	}
	if cmd, ok := parseCommand(msg.Text); ok {
		ev.Kind = engine.EventCommand
		ev.Value = cmd
	} else {
		ev.Kind = engine.EventText
		ev.Value = msg.Text
	}

	reply, err := s.conv.Handle(ctx, ev)
	if err != nil {
		s.log.Warn("unhandled message", "user", msg.From.ID, "error", err)
		return
	}
	if _, err := s.client.SendMessageWithKeyboard(ctx, msg.Chat.ID, reply.Text, keyboardMarkup(reply.Keyboard)); err != nil {
		s.log.Error("sending reply failed", "user", msg.From.ID, "error", err)
	}
}

// parseCommand extracts the command name from a "/name" or "/name@botname"
// message. Arguments after the command are discarded.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// keyboardMarkup converts an engine keyboard to the wire format, nil when
// there are no buttons.
func keyboardMarkup(rows [][]engine.Button) *InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &InlineKeyboardMarkup{InlineKeyboard: make([][]InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		wire := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			wire = append(wire, InlineKeyboardButton{Text: b.Label, CallbackData: b.Tag})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, wire)
	}
	return markup
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
