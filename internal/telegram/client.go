// Package telegram implements the bot transport on top of the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AllowedUpdates are the update types the bot subscribes to.
var AllowedUpdates = []string{"message", "callback_query"}

// maxFileSize bounds voice note downloads. Telegram bots cannot fetch files
// larger than 20 MB anyway.
const maxFileSize = 20 << 20

// Client sends and edits messages through the Bot API.
type Client struct {
	api          *tgbotapi.BotAPI
	fileEndpoint string
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	apiEndpoint  string
	fileEndpoint string
	httpClient   tgbotapi.HTTPClient
}

// WithEndpoints points the client at a different Bot API server. Both
// endpoints are format strings taking the token and then the method or file
// path.
func WithEndpoints(apiEndpoint, fileEndpoint string) Option {
	return func(o *clientOptions) {
		o.apiEndpoint = apiEndpoint
		o.fileEndpoint = fileEndpoint
	}
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(c tgbotapi.HTTPClient) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// NewClient authenticates token against the Bot API and returns a Client.
func NewClient(token string, opts ...Option) (*Client, error) {
	o := clientOptions{
		apiEndpoint:  tgbotapi.APIEndpoint,
		fileEndpoint: tgbotapi.FileEndpoint,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, o.apiEndpoint, o.httpClient)
	if err != nil {
		return nil, fmt.Errorf("NewClient: getMe: %w", err)
	}

	return &Client{api: api, fileEndpoint: o.fileEndpoint}, nil
}

// Username returns the bot's username as reported by getMe.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendText sends an HTML message. Like every Client method it stops waiting
// when ctx ends.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := call(ctx, func() (tgbotapi.Message, error) { return c.api.Send(msg) }); err != nil {
		return fmt.Errorf("SendText: %w", err)
	}
	return nil
}

// SendChoices sends an HTML message with one inline button per choice laid
// out in a single row.
func (c *Client) SendChoices(ctx context.Context, chatID int64, text string, choices []bot.Choice) (int, error) {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, ch := range choices {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(ch.Label, ch.Value))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons)

	sent, err := call(ctx, func() (tgbotapi.Message, error) { return c.api.Send(msg) })
	if err != nil {
		return 0, fmt.Errorf("SendChoices: %w", err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a sent message and drops its buttons.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML

	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.api.Request(edit) })
	if isNotModified(err) {
		lg := logger.FromContext(ctx)
		lg.Debug().Int("message_id", messageID).Msg("Message already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("EditText: %w", err)
	}
	return nil
}

// Acknowledge answers a callback query so the client stops its spinner.
func (c *Client) Acknowledge(ctx context.Context, callbackID string) error {
	answer := tgbotapi.NewCallback(callbackID, "")
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.api.Request(answer) }); err != nil {
		return fmt.Errorf("Acknowledge: %w", err)
	}
	return nil
}

// Download resolves fileID with getFile and fetches its content.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := call(ctx, func() (tgbotapi.File, error) {
		return c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	})
	if err != nil {
		return nil, fmt.Errorf("Download: getFile: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("Download: getFile: no file path for %s", fileID)
	}

	url := fmt.Sprintf(c.fileEndpoint, c.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("Download: build request: %w", err)
	}

	resp, err := c.api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Download: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Download: fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, fmt.Errorf("Download: read body: %w", err)
	}

	lg := logger.FromContext(ctx)
	lg.Debug().
		Str("file_path", file.FilePath).
		Int("bytes", len(data)).
		Msg("Downloaded file")

	return data, nil
}

// SetWebhook registers url as the webhook. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return fmt.Errorf("SetWebhook: %w", err)
	}

	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.api.MakeRequest("setWebhook", params) }); err != nil {
		return fmt.Errorf("SetWebhook: %w", err)
	}

	lg := logger.FromContext(ctx)
	lg.Info().Str("url", url).Msg("Webhook registered")
	return nil
}

// DeleteWebhook removes the webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.api.MakeRequest("deleteWebhook", tgbotapi.Params{}) }); err != nil {
		return fmt.Errorf("DeleteWebhook: %w", err)
	}
	return nil
}

// call runs a Bot API request and returns early when ctx ends first. The
// library builds its requests without a context, so an abandoned request
// still runs until the HTTP client timeout.
func call[T any](ctx context.Context, request func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := request()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

var _ bot.Transport = (*Client)(nil)
