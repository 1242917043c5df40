// Package app builds the bot's components from a config.Config. Clients are
// created on first use and shared; Close releases them.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-bot/internal/audio"
	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/errorsink"
	"github.com/dvloznov/finance-bot/internal/extraction"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/pending"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"github.com/dvloznov/finance-bot/internal/telegram"
	"github.com/dvloznov/finance-bot/internal/validation"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// App lazily wires components.
type App struct {
	cfg *config.Config
	log zerolog.Logger
	loc *time.Location

	sheets    *sheets.Service
	bigquery  *bigquery.Client
	firestore *firestore.Client
	storage   *storage.Client
	transport *telegram.Client
	taxonomy  taxonomy.Provider
	sink      errorsink.Sink
	writer    *ledger.Writer

	closers []func() error
}

// New creates an App for cfg.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	return &App{cfg: cfg, log: log, loc: loc}, nil
}

// Location returns the configured timezone.
func (a *App) Location() *time.Location {
	return a.loc
}

// Close releases every client created so far.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Sheets returns the Sheets API service.
func (a *App) Sheets(ctx context.Context) (*sheets.Service, error) {
	if a.sheets != nil {
		return a.sheets, nil
	}
	if err := a.cfg.Require("SHEET_ID"); err != nil {
		return nil, fmt.Errorf("Sheets: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("Sheets: create service: %w", err)
	}
	a.sheets = srv
	return srv, nil
}

// Transport returns the Telegram client.
func (a *App) Transport() (*telegram.Client, error) {
	if a.transport != nil {
		return a.transport, nil
	}
	if err := a.cfg.Require("TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("Transport: %w", err)
	}

	client, err := telegram.NewClient(a.cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("Transport: %w", err)
	}
	a.transport = client
	return client, nil
}

// Taxonomy returns the YAML file provider when TAXONOMY_FILE is set and the
// configuration sheet otherwise.
func (a *App) Taxonomy(ctx context.Context) (taxonomy.Provider, error) {
	if a.taxonomy != nil {
		return a.taxonomy, nil
	}

	if a.cfg.TaxonomyFile != "" {
		a.taxonomy = taxonomy.NewFileProvider(a.cfg.TaxonomyFile)
		return a.taxonomy, nil
	}

	srv, err := a.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("Taxonomy: %w", err)
	}
	a.taxonomy = taxonomy.NewSheetsProvider(srv, a.cfg.SheetID, a.cfg.ConfigSheetName)
	return a.taxonomy, nil
}

// ErrorSink returns the error log tab sink when a spreadsheet is configured,
// and a log-only sink otherwise.
func (a *App) ErrorSink(ctx context.Context) errorsink.Sink {
	if a.sink != nil {
		return a.sink
	}
	if a.cfg.SheetID == "" {
		a.sink = errorsink.LogSink{}
		return a.sink
	}

	srv, err := a.Sheets(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Error sheet unavailable, errors go to the log only")
		a.sink = errorsink.LogSink{}
		return a.sink
	}
	a.sink = errorsink.NewSheetsSink(srv, a.cfg.SheetID, a.cfg.ErrorSheetName, a.loc)
	return a.sink
}

// Validator returns a record validator reporting to the error sink.
func (a *App) Validator(ctx context.Context) *validation.Validator {
	return validation.NewValidator(a.log, a.ErrorSink(ctx))
}

// LedgerStore returns the configured ledger backend.
func (a *App) LedgerStore(ctx context.Context) (ledger.Store, error) {
	switch a.cfg.LedgerBackend {
	case config.LedgerBigQuery:
		client, err := a.BigQuery(ctx)
		if err != nil {
			return nil, fmt.Errorf("LedgerStore: %w", err)
		}
		return ledger.NewBigQueryStore(client, a.cfg.GCPProject, a.cfg.BigQueryDataset), nil
	default:
		srv, err := a.Sheets(ctx)
		if err != nil {
			return nil, fmt.Errorf("LedgerStore: %w", err)
		}
		return ledger.NewSheetsStore(srv, a.cfg.SheetID, a.cfg.LedgerSheetName), nil
	}
}

// BigQuery returns the BigQuery client.
func (a *App) BigQuery(ctx context.Context) (*bigquery.Client, error) {
	if a.bigquery != nil {
		return a.bigquery, nil
	}
	client, err := bigquery.NewClient(ctx, a.cfg.GCPProject)
	if err != nil {
		return nil, fmt.Errorf("BigQuery: create client: %w", err)
	}
	a.bigquery = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// Ledger returns the ledger writer, mirroring to Notion when configured.
func (a *App) Ledger(ctx context.Context) (*ledger.Writer, error) {
	if a.writer != nil {
		return a.writer, nil
	}

	store, err := a.LedgerStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("Ledger: %w", err)
	}
	provider, err := a.Taxonomy(ctx)
	if err != nil {
		return nil, fmt.Errorf("Ledger: %w", err)
	}

	var mirror ledger.Mirror
	if a.cfg.NotionEnabled() {
		mirror = ledger.NewNotionMirror(ledger.NewNotionClient(a.cfg.NotionToken), a.cfg.NotionDatabaseID)
	}

	a.writer = ledger.NewWriter(store, provider, mirror, a.loc)
	return a.writer, nil
}

// Registry returns the pending entry registry on the configured store.
func (a *App) Registry(ctx context.Context) (*pending.Registry, error) {
	if a.cfg.PendingBackend != config.PendingFirestore {
		return pending.NewRegistry(pending.NewMemoryStore()), nil
	}

	if a.firestore == nil {
		client, err := firestore.NewClient(ctx, a.cfg.GCPProject)
		if err != nil {
			return nil, fmt.Errorf("Registry: create firestore client: %w", err)
		}
		a.firestore = client
		a.closers = append(a.closers, client.Close)
	}
	return pending.NewRegistry(pending.NewFirestoreStore(a.firestore, pending.DefaultCollection)), nil
}

// Extractor returns the Gemini-backed extractor.
func (a *App) Extractor(ctx context.Context) (extraction.Extractor, error) {
	if err := a.cfg.Require("GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("Extractor: %w", err)
	}

	provider, err := a.Taxonomy(ctx)
	if err != nil {
		return nil, fmt.Errorf("Extractor: %w", err)
	}
	client, err := extraction.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, "")
	if err != nil {
		return nil, fmt.Errorf("Extractor: %w", err)
	}

	gen := extraction.NewGeminiGenerator(client, a.cfg.GeminiModel)
	return extraction.NewModelExtractor(gen, provider, a.loc), nil
}

// Archive returns the voice note archive, or nil when no bucket is set.
func (a *App) Archive(ctx context.Context) (*audio.Archive, error) {
	if a.cfg.GCSAudioBucket == "" {
		return nil, nil
	}

	if a.storage == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("Archive: create storage client: %w", err)
		}
		a.storage = client
		a.closers = append(a.closers, client.Close)
	}
	return audio.NewArchive(audio.NewGCSObjectStore(a.storage), a.cfg.GCSAudioBucket, a.loc), nil
}

// Service wires the complete conversation service.
func (a *App) Service(ctx context.Context) (*bot.Service, error) {
	if err := a.cfg.Require("TELEGRAM_BOT_TOKEN", "MY_CHAT_ID", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}

	transport, err := a.Transport()
	if err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}
	extractor, err := a.Extractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}
	provider, err := a.Taxonomy(ctx)
	if err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}
	registry, err := a.Registry(ctx)
	if err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}
	writer, err := a.Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}
	archive, err := a.Archive(ctx)
	if err != nil {
		return nil, fmt.Errorf("Service: %w", err)
	}

	opts := bot.Options{
		Transport: transport,
		Extractor: extractor,
		Validator: a.Validator(ctx),
		Taxonomy:  provider,
		Registry:  registry,
		Ledger:    writer,
		Sink:      a.ErrorSink(ctx),
		ChatID:    a.cfg.ChatID,
		Location:  a.loc,
	}
	// A nil *audio.Archive must not end up as a non-nil interface.
	if archive != nil {
		opts.Archiver = archive
	}

	return bot.NewService(opts), nil
}
