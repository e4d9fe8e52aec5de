// Package domain holds the shared types passed between channels, the
// router, and the turn orchestrator.
package domain

import "time"

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// ContextID derives the stable conversation-context key for a chat surface.
// One context maps to at most one live backend session.
func ContextID(channelID, chatID string) string {
	return channelID + ":" + chatID
}

// Attachment is a file or media item carried on a message. Inbound
// attachments usually carry a URL; outbound ones carry raw Data to upload.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Upload is a raw attachment ready to be pushed to the assistant backend.
type Upload struct {
	Filename string
	Data     []byte
}

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channelId"`
	From      string       `json:"from"`
	FromName  string       `json:"fromName,omitempty"`
	ChatID    string       `json:"chatId"`
	ChatType  ChatType     `json:"chatType"`
	Body      string       `json:"body"`
	Timestamp time.Time    `json:"timestamp"`
	Media     []Attachment `json:"media,omitempty"`
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string       `json:"channelId"`
	To        string       `json:"to"`
	Body      string       `json:"body"`
	ReplyToID string       `json:"replyToId,omitempty"`
	Media     []Attachment `json:"media,omitempty"`
}
