package linebot

import (
	"strings"
	"time"

	"github.com/tsengs/familyagent/internal/dedupe"
	"github.com/tsengs/familyagent/internal/memory"
)

// WebhookRequest is the envelope the platform posts to the webhook.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event. Only message events with text content are
// dispatched; everything else is acknowledged and dropped.
type Event struct {
	Type       string   `json:"type"`
	Timestamp  int64    `json:"timestamp"` // epoch millis
	ReplyToken string   `json:"replyToken"`
	Source     Source   `json:"source"`
	Message    *Message `json:"message,omitempty"`
}

// Source identifies where the event came from.
type Source struct {
	Type    string `json:"type"` // "user", "group" or "room"
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message payload of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"` // only "text" is handled
	Text string `json:"text"`
}

// IsTextMessage reports whether the event carries dispatchable text.
func (e Event) IsTextMessage() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text" && strings.TrimSpace(e.Message.Text) != ""
}

// InGroup reports whether the event originated in a group or room.
func (e Event) InGroup() bool {
	return e.Source.Type == "group" || e.Source.Type == "room"
}

// ConversationID returns the group or room scope, empty for direct chat.
func (e Event) ConversationID() string {
	if e.Source.GroupID != "" {
		return e.Source.GroupID
	}
	return e.Source.RoomID
}

// Identity maps the event source to a memory scope.
func (e Event) Identity() memory.Identity {
	return memory.Identity{UserID: e.Source.UserID, GroupID: e.ConversationID()}
}

// DedupeKey derives the stable suppression key for this event.
func (e Event) DedupeKey() string {
	var id, text string
	if e.Message != nil {
		id, text = e.Message.ID, e.Message.Text
	}
	return dedupe.MessageKey(id, text, e.Source.UserID, e.ConversationID(), e.Timestamp)
}

// EventTime converts the epoch-millis timestamp.
func (e Event) EventTime() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// MentionsBot reports whether the text addresses the bot by name. Group
// messages without a mention are ignored entirely.
func MentionsBot(text, botName string) bool {
	if botName == "" {
		return false
	}
	return strings.Contains(text, "@"+botName)
}

// StripMention removes the bot mention from the text before dispatch.
func StripMention(text, botName string) string {
	cleaned := strings.ReplaceAll(text, "@"+botName, "")
	return strings.TrimSpace(cleaned)
}
