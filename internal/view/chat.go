package view

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/google/uuid"
)

// ChatView holds the assistant conversation.
type ChatView struct {
	gw       ChatGateway
	logger   *slog.Logger
	messages Messages
	now      func() time.Time

	mu      sync.RWMutex
	history []domain.ChatMessage
	pending int
}

// ChatSnapshot is a copy of the conversation.
type ChatSnapshot struct {
	Messages []domain.ChatMessage `json:"messages"`
	Pending  bool                 `json:"pending"`
}

// NewChatView creates an empty conversation.
func NewChatView(gw ChatGateway, opts Options) *ChatView {
	opts = opts.withDefaults()
	return &ChatView{
		gw:       gw,
		logger:   opts.Logger.With(slog.String("component", "view"), slog.String("view", "chat")),
		messages: opts.Messages,
		now:      opts.Now,
	}
}

// Send appends the user's text, asks the assistant and appends its reply.
// On failure a fallback bot message is appended and the error returned.
// Blank input is ignored.
func (v *ChatView) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	v.mu.Lock()
	v.history = append(v.history, v.message(domain.ChatSenderUser, text))
	v.pending++
	v.mu.Unlock()

	reply, err := v.gw.Chat(ctx, text)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending--

	if torn(ctx) {
		return ctx.Err()
	}

	if err != nil {
		v.history = append(v.history, v.message(domain.ChatSenderBot, v.messages.Get(MsgChatFailed)))
		v.logger.Warn("chat request failed", slog.String("error", err.Error()))
		return fmt.Errorf("view: chat: %w", err)
	}
	v.history = append(v.history, v.message(domain.ChatSenderBot, reply))
	return nil
}

// Snapshot returns a copy of the conversation.
func (v *ChatView) Snapshot() ChatSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ChatSnapshot{
		Messages: append([]domain.ChatMessage{}, v.history...),
		Pending:  v.pending > 0,
	}
}

func (v *ChatView) message(sender domain.ChatSender, text string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		SentAt: v.now().UTC(),
	}
}
