package bot

import (
	"strings"
	"time"
)

// Update is one inbound event. Exactly one of Message and Callback is set.
type Update struct {
	ID       int
	Message  *Message
	Callback *Callback
}

// ChatID returns the conversation the update belongs to, or 0.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.ChatID
	case u.Callback != nil:
		return u.Callback.ChatID
	}
	return 0
}

// Message is a text or voice message.
type Message struct {
	ID     int
	ChatID int64
	Text   string
	Voice  *Voice
	Date   time.Time
}

// IsCommand reports whether the message is a slash command.
func (m Message) IsCommand() bool {
	return strings.HasPrefix(m.Text, "/")
}

// Voice references a voice note held by the transport.
type Voice struct {
	FileID   string
	MIMEType string
	Duration int
}

// Callback is a press on one of the choices of a prompt.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// Prompt actions carried in callback data as "<action>_<entry id>".
const (
	ActionConfirm = "confirm"
	ActionEdit    = "edit"
	ActionCancel  = "cancel"
)

func callbackData(action, entryID string) string {
	return action + "_" + entryID
}

func parseCallbackData(data string) (action, entryID string, ok bool) {
	action, entryID, ok = strings.Cut(data, "_")
	if !ok || entryID == "" {
		return "", "", false
	}
	switch action {
	case ActionConfirm, ActionEdit, ActionCancel:
		return action, entryID, true
	}
	return "", "", false
}
