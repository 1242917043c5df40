package bot

import (
	"context"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// Choice is one button of a prompt.
type Choice struct {
	Label string
	Value string
}

// Transport sends messages to the chat. Texts are HTML.
//
//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks -source=transport.go
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// SendChoices sends text with one button per choice and returns the id
	// of the sent message.
	SendChoices(ctx context.Context, chatID int64, text string, choices []Choice) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	Acknowledge(ctx context.Context, callbackID string) error
	// Download fetches a file held by the transport, such as a voice note.
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Archiver keeps a copy of voice notes.
type Archiver interface {
	Archive(ctx context.Context, chatID int64, messageID int, at time.Time, data []byte) (string, error)
}

// Ledger posts confirmed records and reads the ledger back.
type Ledger interface {
	Post(ctx context.Context, record domain.Candidate, fallback time.Time) ([]domain.LedgerRow, error)
	Rows(ctx context.Context) ([]domain.LedgerRow, error)
}
