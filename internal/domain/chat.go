package domain

import "time"

// ChatSender identifies who wrote a chat message.
type ChatSender string

const (
	ChatSenderUser ChatSender = "user"
	ChatSenderBot  ChatSender = "bot"
)

// ChatMessage is one line of the assistant conversation.
type ChatMessage struct {
	ID     string     `json:"id"`
	Sender ChatSender `json:"sender"`
	Text   string     `json:"text"`
	SentAt time.Time  `json:"sent_at"`
}
