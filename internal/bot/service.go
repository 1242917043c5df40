// Package bot runs the conversation: commands, extraction of new movements
// and the confirm/edit/cancel cycle of pending entries.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/errorsink"
	"github.com/dvloznov/finance-bot/internal/extraction"
	"github.com/dvloznov/finance-bot/internal/format"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/pending"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"github.com/dvloznov/finance-bot/internal/validation"
)

// User-facing texts.
const (
	promptQuestion    = "¿Confirmás el registro?"
	unavailableText   = "⌛ Los datos de este registro ya no están disponibles. Enviá el movimiento de nuevo."
	editInstructions  = "Enviá las correcciones en un mensaje de texto o de voz. /cancelar para salir de la edición."
	retryEditText     = "Enviá otra corrección o /cancelar para salir de la edición."
	genericFailure    = "❌ Ocurrió un error procesando tu mensaje. Por favor intenta de nuevo."
	configFailure     = "❌ No pude leer la configuración de cuentas y categorías. Revisá la planilla e intenta de nuevo."
	extractionFailure = "❌ No pude interpretar tu mensaje. Por favor intenta de nuevo con otras palabras."
	ledgerFailure     = "❌ No pude guardar el registro. Podés volver a confirmarlo."
)

// Options holds the collaborators of a Service.
type Options struct {
	Transport Transport
	Extractor extraction.Extractor
	Validator *validation.Validator
	Taxonomy  taxonomy.Provider
	Registry  *pending.Registry
	Ledger    Ledger
	Sink      errorsink.Sink
	// Archiver is optional.
	Archiver Archiver
	// ChatID is the only conversation served.
	ChatID int64
	// Location is used to derive dates from message timestamps.
	Location *time.Location
}

// Service handles updates for one chat.
type Service struct {
	transport Transport
	extractor extraction.Extractor
	validator *validation.Validator
	taxonomy  taxonomy.Provider
	registry  *pending.Registry
	ledger    Ledger
	sink      errorsink.Sink
	archiver  Archiver
	chatID    int64
	loc       *time.Location
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	sink := opts.Sink
	if sink == nil {
		sink = errorsink.LogSink{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		transport: opts.Transport,
		extractor: opts.Extractor,
		validator: opts.Validator,
		taxonomy:  opts.Taxonomy,
		registry:  opts.Registry,
		ledger:    opts.Ledger,
		sink:      sink,
		archiver:  opts.Archiver,
		chatID:    opts.ChatID,
		loc:       loc,
	}
}

// HandleUpdate processes one update to completion. It never panics and
// never returns an error: failures are logged, recorded in the error sink
// and reported to the user with a single best-effort message.
func (s *Service) HandleUpdate(ctx context.Context, u Update) {
	chatID := u.ChatID()
	log := logger.FromContext(ctx).With().
		Int("update_id", u.ID).
		Int64("chat_id", chatID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, chatID, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.handle(ctx, u); err != nil {
		s.fail(ctx, chatID, err)
	}
}

func (s *Service) handle(ctx context.Context, u Update) error {
	chatID := u.ChatID()
	if chatID == 0 {
		lg := logger.FromContext(ctx)
		lg.Debug().Msg("Ignoring update without chat")
		return nil
	}
	if chatID != s.chatID {
		lg := logger.FromContext(ctx)
		lg.Warn().Msg("Rejected update from unknown chat")
		return s.transport.SendText(ctx, chatID, "Chat ID inválido: "+strconv.FormatInt(chatID, 10))
	}

	switch {
	case u.Callback != nil:
		return s.handleCallback(ctx, *u.Callback)
	case u.Message != nil:
		return s.handleMessage(ctx, *u.Message)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, chatID int64, err error) {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Msg("Failed to handle update")
	s.sink.Record(ctx, "HandleUpdate", err, map[string]interface{}{"chat_id": chatID})

	if chatID == 0 {
		return
	}
	if sendErr := s.transport.SendText(ctx, chatID, failureText(err)); sendErr != nil {
		log.Error().Err(sendErr).Msg("Failed to notify user about error")
	}
}

func failureText(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfig):
		return configFailure
	case errors.Is(err, domain.ErrLedgerWrite):
		return ledgerFailure
	case errors.Is(err, domain.ErrExtraction):
		return extractionFailure
	default:
		return genericFailure
	}
}

func (s *Service) handleMessage(ctx context.Context, msg Message) error {
	if msg.IsCommand() {
		return s.handleCommand(ctx, msg)
	}
	if msg.Text == "" && msg.Voice == nil {
		lg := logger.FromContext(ctx)
		lg.Debug().Int("message_id", msg.ID).Msg("Ignoring message without text or voice")
		return nil
	}

	marker, editing, err := s.registry.EditMode(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("handleMessage: %w", err)
	}
	if editing {
		return s.handleEditInstruction(ctx, msg, marker)
	}

	content, err := s.content(ctx, msg)
	if err != nil {
		return fmt.Errorf("handleMessage: %w", err)
	}
	candidate, err := s.extractor.Extract(ctx, content, "")
	if err != nil {
		return fmt.Errorf("handleMessage: %w", err)
	}

	ok, err := s.validate(ctx, msg.ChatID, candidate, "")
	if err != nil || !ok {
		return err
	}

	entry, err := s.registry.Create(ctx, msg.ChatID, candidate, msg.Date)
	if err != nil {
		return fmt.Errorf("handleMessage: %w", err)
	}
	if err := s.prompt(ctx, entry); err != nil {
		return fmt.Errorf("handleMessage: %w", err)
	}
	return nil
}

// validate runs the validator against the live taxonomy and reports a
// rejection to the user. ok is false when the candidate was rejected.
func (s *Service) validate(ctx context.Context, chatID int64, c domain.Candidate, hint string) (ok bool, err error) {
	t, err := s.taxonomy.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("validate: %w", err)
	}

	res := s.validator.Validate(ctx, c, t)
	if res.Valid {
		return true, nil
	}

	text := "❌ " + res.Reason
	if hint != "" {
		text += "\n\n" + hint
	}
	if err := s.transport.SendText(ctx, chatID, text); err != nil {
		return false, fmt.Errorf("validate: send rejection: %w", err)
	}
	return false, nil
}

// prompt sends the confirmation prompt for entry. The entry is removed if
// the prompt cannot be sent.
func (s *Service) prompt(ctx context.Context, entry *pending.Entry) error {
	text := format.Record(entry.Record, s.displayDate(entry.Record, entry.OriginTimestamp), "") + "\n\n" + promptQuestion
	choices := []Choice{
		{Label: "✅ Confirmar", Value: callbackData(ActionConfirm, entry.ID)},
		{Label: "✏️ Editar", Value: callbackData(ActionEdit, entry.ID)},
		{Label: "❌ Cancelar", Value: callbackData(ActionCancel, entry.ID)},
	}

	if _, err := s.transport.SendChoices(ctx, entry.ChatID, text, choices); err != nil {
		if rmErr := s.registry.Remove(ctx, entry.ID); rmErr != nil {
			lg := logger.FromContext(ctx)
			lg.Warn().Err(rmErr).Str("entry_id", entry.ID).Msg("Failed to remove unprompted entry")
		}
		return fmt.Errorf("prompt: %w", err)
	}

	lg := logger.FromContext(ctx)
	lg.Info().Str("entry_id", entry.ID).Str("type", string(entry.Record.Kind)).Msg("Awaiting confirmation")
	return nil
}

func (s *Service) handleEditInstruction(ctx context.Context, msg Message, marker *pending.EditMarker) error {
	log := logger.FromContext(ctx).With().Str("entry_id", marker.EntryID).Logger()
	ctx = logger.WithContext(ctx, log)

	entry, err := s.registry.Entry(ctx, marker.EntryID)
	if errors.Is(err, domain.ErrStaleReference) {
		if err := s.registry.LeaveEditMode(ctx, msg.ChatID); err != nil {
			log.Warn().Err(err).Msg("Failed to leave edit mode")
		}
		return s.transport.SendText(ctx, msg.ChatID, unavailableText)
	}
	if err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}

	content, err := s.content(ctx, msg)
	if err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}
	instructions, err := s.extractor.EditPrompt(ctx, entry.Record)
	if err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}
	candidate, err := s.extractor.Extract(ctx, content, instructions)
	if err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}

	ok, err := s.validate(ctx, msg.ChatID, candidate, retryEditText)
	if err != nil || !ok {
		return err
	}

	entry, err = s.registry.ReplaceRecord(ctx, entry.ID, candidate)
	if errors.Is(err, domain.ErrStaleReference) {
		if err := s.registry.LeaveEditMode(ctx, msg.ChatID); err != nil {
			log.Warn().Err(err).Msg("Failed to leave edit mode")
		}
		return s.transport.SendText(ctx, msg.ChatID, unavailableText)
	}
	if err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}

	if err := s.registry.LeaveEditMode(ctx, msg.ChatID); err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}
	log.Info().Msg("Entry edited")

	if err := s.prompt(ctx, entry); err != nil {
		return fmt.Errorf("handleEditInstruction: %w", err)
	}
	return nil
}

func (s *Service) handleCallback(ctx context.Context, cb Callback) error {
	log := logger.FromContext(ctx)
	if err := s.transport.Acknowledge(ctx, cb.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to acknowledge callback")
	}

	action, id, ok := parseCallbackData(cb.Data)
	if !ok {
		log.Warn().Str("data", cb.Data).Msg("Ignoring unknown callback")
		return nil
	}
	log = log.With().Str("action", action).Str("entry_id", id).Logger()
	ctx = logger.WithContext(ctx, log)

	entry, err := s.registry.Entry(ctx, id)
	if errors.Is(err, domain.ErrStaleReference) {
		log.Info().Msg("Callback for expired entry")
		return s.transport.EditText(ctx, cb.ChatID, cb.MessageID, unavailableText)
	}
	if err != nil {
		return fmt.Errorf("handleCallback: %w", err)
	}

	switch action {
	case ActionConfirm:
		return s.confirm(ctx, cb, entry)
	case ActionEdit:
		return s.edit(ctx, cb, entry)
	default:
		return s.cancel(ctx, cb, entry)
	}
}

func (s *Service) confirm(ctx context.Context, cb Callback, entry *pending.Entry) error {
	log := logger.FromContext(ctx)

	rows, err := s.ledger.Post(ctx, entry.Record, entry.OriginTimestamp)
	if err != nil {
		log.Error().Err(err).Interface("record", entry.Record).Time("origin", entry.OriginTimestamp).Msg("Failed to post entry")
		return fmt.Errorf("confirm: %w", err)
	}

	if err := s.registry.Remove(ctx, entry.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to remove posted entry")
	}

	date := s.displayDate(entry.Record, entry.OriginTimestamp)
	if len(rows) > 0 {
		date = domain.FormatDate(rows[0].Date)
	}
	log.Info().Int("rows", len(rows)).Msg("Entry confirmed")
	return s.transport.EditText(ctx, cb.ChatID, cb.MessageID, format.Record(entry.Record, date, "✅ <b>Registrado</b>"))
}

func (s *Service) edit(ctx context.Context, cb Callback, entry *pending.Entry) error {
	text := format.Record(entry.Record, s.displayDate(entry.Record, entry.OriginTimestamp), "✏️ <b>Editando</b>") + "\n\n" + editInstructions
	if err := s.transport.EditText(ctx, cb.ChatID, cb.MessageID, text); err != nil {
		return fmt.Errorf("edit: %w", err)
	}

	marker := pending.EditMarker{EntryID: entry.ID, Record: entry.Record}
	if err := s.registry.EnterEditMode(ctx, cb.ChatID, marker); err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	lg := logger.FromContext(ctx)
	lg.Info().Msg("Awaiting edit instruction")
	return nil
}

func (s *Service) cancel(ctx context.Context, cb Callback, entry *pending.Entry) error {
	if err := s.registry.Remove(ctx, entry.ID); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	lg := logger.FromContext(ctx)
	lg.Info().Msg("Entry cancelled")
	text := format.Record(entry.Record, s.displayDate(entry.Record, entry.OriginTimestamp), "🚫 <b>Cancelado</b>")
	return s.transport.EditText(ctx, cb.ChatID, cb.MessageID, text)
}

// content turns a message into extraction input, downloading voice notes.
func (s *Service) content(ctx context.Context, msg Message) (extraction.Content, error) {
	if msg.Voice == nil {
		return extraction.Content{Text: msg.Text}, nil
	}

	data, err := s.transport.Download(ctx, msg.Voice.FileID)
	if err != nil {
		return extraction.Content{}, fmt.Errorf("download voice: %w", err)
	}

	if s.archiver != nil {
		path, err := s.archiver.Archive(ctx, msg.ChatID, msg.ID, msg.Date, data)
		if err != nil {
			lg := logger.FromContext(ctx)
			lg.Warn().Err(err).Msg("Failed to archive voice note")
		} else {
			lg := logger.FromContext(ctx)
			lg.Debug().Str("path", path).Msg("Archived voice note")
		}
	}

	return extraction.Content{Audio: data, AudioMIMEType: msg.Voice.MIMEType}, nil
}

// displayDate is the date a record will be posted with.
func (s *Service) displayDate(record domain.Candidate, origin time.Time) string {
	if record.Date != "" {
		return record.Date
	}
	return domain.FormatDate(civil.DateOf(origin.In(s.loc)))
}
