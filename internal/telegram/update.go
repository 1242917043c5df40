package telegram

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dvloznov/finance-bot/internal/bot"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DecodeUpdate reads one webhook delivery.
func DecodeUpdate(r io.Reader) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("DecodeUpdate: %w", err)
	}
	return u, nil
}

// ConvertUpdate maps a Bot API update to a bot.Update. The second result is
// false for update types the bot does not handle.
func ConvertUpdate(u tgbotapi.Update) (bot.Update, bool) {
	out := bot.Update{ID: u.UpdateID}

	switch {
	case u.Message != nil && u.Message.Chat != nil:
		out.Message = convertMessage(u.Message)
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		q := u.CallbackQuery
		out.Callback = &bot.Callback{
			ID:        q.ID,
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			Data:      q.Data,
		}
	default:
		return out, false
	}

	return out, true
}

func convertMessage(m *tgbotapi.Message) *bot.Message {
	msg := &bot.Message{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		Text:   m.Text,
		Date:   m.Time(),
	}
	if m.Voice != nil {
		msg.Voice = &bot.Voice{
			FileID:   m.Voice.FileID,
			MIMEType: m.Voice.MimeType,
			Duration: m.Voice.Duration,
		}
	}
	return msg
}
