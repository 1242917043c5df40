// Package extraction turns a chat message into a candidate movement with the
// help of a language model.
package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"google.golang.org/genai"
)

// ErrNoRecord is returned when the model answered with valid JSON that holds
// no recognizable movement.
var ErrNoRecord = fmt.Errorf("%w: no movement in model response", domain.ErrExtraction)

// Content is what the user sent: text, or a voice note.
type Content struct {
	Text          string
	Audio         []byte
	AudioMIMEType string
}

// IsAudio reports whether the content is a voice note.
func (c Content) IsAudio() bool {
	return len(c.Audio) > 0
}

// Extractor produces a candidate from a message. A non-empty promptOverride
// replaces the default instructions.
type Extractor interface {
	Extract(ctx context.Context, content Content, promptOverride string) (domain.Candidate, error)
	EditPrompt(ctx context.Context, current domain.Candidate) (string, error)
}

// Generator sends prompt parts to a model and returns its text answer.
type Generator interface {
	Generate(ctx context.Context, parts []*genai.Part) (string, error)
}

// ModelExtractor builds prompts from the live taxonomy and decodes the
// model's answer.
type ModelExtractor struct {
	gen      Generator
	taxonomy taxonomy.Provider
	loc      *time.Location
	now      func() time.Time
}

var _ Extractor = (*ModelExtractor)(nil)

// NewModelExtractor creates an extractor. Relative dates in messages are
// resolved against today's date in loc.
func NewModelExtractor(gen Generator, provider taxonomy.Provider, loc *time.Location) *ModelExtractor {
	if loc == nil {
		loc = time.UTC
	}
	return &ModelExtractor{gen: gen, taxonomy: provider, loc: loc, now: time.Now}
}

func (e *ModelExtractor) today() string {
	return e.now().In(e.loc).Format(domain.DateLayout)
}

// EditPrompt returns the instructions for correcting current.
func (e *ModelExtractor) EditPrompt(ctx context.Context, current domain.Candidate) (string, error) {
	t, err := e.taxonomy.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("EditPrompt: load taxonomy: %w", err)
	}
	return EditPrompt(t, e.today(), current), nil
}

// Extract runs one model call.
func (e *ModelExtractor) Extract(ctx context.Context, content Content, promptOverride string) (domain.Candidate, error) {
	log := logger.FromContext(ctx)

	prompt := promptOverride
	if prompt == "" {
		t, err := e.taxonomy.Load(ctx)
		if err != nil {
			return domain.Candidate{}, fmt.Errorf("Extract: load taxonomy: %w", err)
		}
		prompt = DefaultPrompt(t, e.today(), content.IsAudio())
	}

	parts := []*genai.Part{{Text: prompt}}
	if content.IsAudio() {
		mime := content.AudioMIMEType
		if mime == "" {
			mime = "audio/ogg"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: content.Audio}})
	} else {
		parts = append(parts, &genai.Part{Text: "### MENSAJE A PROCESAR:\n\"" + content.Text + "\""})
	}

	raw, err := e.gen.Generate(ctx, parts)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("Extract: %w: %v", domain.ErrExtraction, err)
	}

	parsed, err := parseModelJSON(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw_response", raw).Msg("Model returned malformed JSON")
		return domain.Candidate{}, fmt.Errorf("Extract: %w: %v", domain.ErrExtraction, err)
	}

	rec, ok := Normalize(parsed)
	if !ok {
		log.Warn().Str("raw_response", raw).Msg("Model response holds no movement")
		return domain.Candidate{}, fmt.Errorf("Extract: %w", ErrNoRecord)
	}

	c, err := DecodeCandidate(rec)
	if err != nil {
		log.Warn().Err(err).Str("raw_response", raw).Msg("Model response has malformed fields")
		return domain.Candidate{}, fmt.Errorf("Extract: %w: %v", domain.ErrExtraction, err)
	}

	log.Debug().Str("type", string(c.Kind)).Str("amount", string(c.Amount)).Msg("Extracted candidate")
	return c, nil
}
