// Package audio keeps a copy of every voice note the bot receives in Cloud
// Storage, so a transcription can be checked against the original later.
package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/logger"
)

// voiceContentType is what Telegram delivers for voice notes.
const voiceContentType = "audio/ogg"

// Archive stores voice notes under voice/<chat>/<yyyy-mm-dd>/<message>.ogg.
type Archive struct {
	store  ObjectStore
	bucket string
	loc    *time.Location
}

// NewArchive creates an Archive writing to bucket. Dates in object names are
// taken in loc.
func NewArchive(store ObjectStore, bucket string, loc *time.Location) *Archive {
	if loc == nil {
		loc = time.UTC
	}
	return &Archive{store: store, bucket: bucket, loc: loc}
}

// ObjectName returns the object path of a voice note.
func (a *Archive) ObjectName(chatID int64, messageID int, at time.Time) string {
	return fmt.Sprintf("voice/%d/%s/%d.ogg", chatID, at.In(a.loc).Format("2006-01-02"), messageID)
}

// Archive uploads data and returns its gs:// URI.
func (a *Archive) Archive(ctx context.Context, chatID int64, messageID int, at time.Time, data []byte) (string, error) {
	object := a.ObjectName(chatID, messageID, at)

	if err := a.store.Write(ctx, a.bucket, object, voiceContentType, data); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, object)
	lg := logger.FromContext(ctx)
	lg.Info().
		Str("uri", uri).
		Int("bytes", len(data)).
		Msg("Archived voice note")

	return uri, nil
}

// Fetch reads an archived voice note back.
func (a *Archive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	data, err := a.store.Read(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}

var _ bot.Archiver = (*Archive)(nil)
