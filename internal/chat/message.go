// Package chat contains the session and message-relay core: the message
// log, the presence registry, the credential table, and the hub that ties
// them together over a single event-processing loop.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageSticker MessageType = "sticker"
	MessageImage   MessageType = "image"
	MessageSystem  MessageType = "system"
)

// SystemUser authors join/leave announcements.
const SystemUser = "System"

// ChatMessage is one entry of the message log. ReadBy is mutated in place
// by read receipts; everything else is immutable after append.
type ChatMessage struct {
	ID          string      `json:"id"`
	User        string      `json:"user"`
	Text        string      `json:"text"`
	Type        MessageType `json:"type"`
	Timestamp   string      `json:"timestamp"`
	DisplayTime string      `json:"time"`
	ReadBy      []string    `json:"readBy"`
}

func NewMessage(user, text string, kind MessageType) ChatMessage {
	now := time.Now()
	return ChatMessage{
		ID:          newMessageID(now),
		User:        user,
		Text:        text,
		Type:        kind,
		Timestamp:   now.UTC().Format(time.RFC3339),
		DisplayTime: now.Format("15:04"),
		ReadBy:      []string{},
	}
}

func NewSystemMessage(text string) ChatMessage {
	return NewMessage(SystemUser, text, MessageSystem)
}

// newMessageID combines a nanosecond timestamp with a UUID fragment acting
// as a collision disconnector for two messages created in the same nanosecond.
func newMessageID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])
}
