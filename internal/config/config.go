// Package config holds the settings shared by the bot binaries. Values come
// from flags or, more usually, from the environment.
package config

import (
	"fmt"
	"io"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/rs/zerolog"
)

// Ledger backends.
const (
	LedgerSheets   = "sheets"
	LedgerBigQuery = "bigquery"
)

// Pending store backends.
const (
	PendingMemory    = "memory"
	PendingFirestore = "firestore"
)

// Config is embedded in the kong CLI struct of every binary.
type Config struct {
	TelegramBotToken      string `name:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" help:"Bot API token."`
	TelegramWebhookSecret string `name:"telegram-webhook-secret" env:"TELEGRAM_WEBHOOK_SECRET" help:"Secret Telegram sends with every webhook delivery."`
	ChatID                int64  `name:"chat-id" env:"MY_CHAT_ID" help:"The only chat the bot answers."`
	AppURL                string `name:"app-url" env:"APP_URL" help:"Public base URL of the bot server."`

	GeminiAPIKey string `name:"gemini-api-key" env:"GEMINI_API_KEY" help:"Gemini API key."`
	GeminiModel  string `name:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.5-flash" help:"Model used for extraction."`

	SheetID         string `name:"sheet-id" env:"SHEET_ID" help:"Spreadsheet holding the ledger, the configuration table and the error log."`
	LedgerSheetName string `name:"ledger-sheet-name" env:"LEDGER_SHEET_NAME" default:"Registros" help:"Ledger tab."`
	ConfigSheetName string `name:"config-sheet-name" env:"CONFIG_SHEET_NAME" default:"Categorías y subcategorías" help:"Accounts and categories tab."`
	ErrorSheetName  string `name:"error-sheet-name" env:"ERROR_SHEET_NAME" default:"Bot Errors" help:"Error log tab."`
	TaxonomyFile    string `name:"taxonomy-file" env:"TAXONOMY_FILE" type:"existingfile" help:"Read accounts and categories from a YAML file instead of the sheet."`

	LedgerBackend   string `name:"ledger-backend" env:"LEDGER_BACKEND" enum:"sheets,bigquery" default:"sheets" help:"Where confirmed movements are written (${enum})."`
	GCPProject      string `name:"gcp-project" env:"GCP_PROJECT" help:"Google Cloud project for BigQuery and Firestore."`
	BigQueryDataset string `name:"bigquery-dataset" env:"BIGQUERY_DATASET" default:"finance" help:"Dataset of the ledger table."`

	PendingBackend string `name:"pending-backend" env:"PENDING_BACKEND" enum:"memory,firestore" default:"memory" help:"Where pending movements wait for confirmation (${enum})."`

	GCSAudioBucket string `name:"gcs-audio-bucket" env:"GCS_AUDIO_BUCKET" help:"Bucket for voice note copies. Empty disables archiving."`

	NotionToken      string `name:"notion-token" env:"NOTION_TOKEN" help:"Notion integration token for the ledger mirror."`
	NotionDatabaseID string `name:"notion-database-id" env:"NOTION_DATABASE_ID" help:"Notion database receiving mirrored rows."`

	Timezone  string `name:"timezone" env:"TIMEZONE" default:"America/Argentina/Buenos_Aires" help:"Timezone of message dates."`
	LogLevel  string `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Log level."`
	LogFormat string `name:"log-format" env:"LOG_FORMAT" enum:"console,json" default:"console" help:"Log output format (${enum})."`
	Port      int    `name:"port" env:"PORT" default:"8080" help:"HTTP port of the bot server."`
}

// Validate checks settings that only make sense together. kong calls it
// after parsing.
func (c *Config) Validate() error {
	if c.LedgerBackend == LedgerBigQuery && c.GCPProject == "" {
		return fmt.Errorf("%w: LEDGER_BACKEND=bigquery requires GCP_PROJECT", domain.ErrConfig)
	}
	if c.PendingBackend == PendingFirestore && c.GCPProject == "" {
		return fmt.Errorf("%w: PENDING_BACKEND=firestore requires GCP_PROJECT", domain.ErrConfig)
	}
	if (c.NotionToken == "") != (c.NotionDatabaseID == "") {
		return fmt.Errorf("%w: NOTION_TOKEN and NOTION_DATABASE_ID must be set together", domain.ErrConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: TIMEZONE %q: %v", domain.ErrConfig, c.Timezone, err)
	}
	return nil
}

// Require fails unless every named setting is non-empty. Binaries call it with
// the settings they cannot run without.
func (c *Config) Require(names ...string) error {
	values := map[string]bool{
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken != "",
		"MY_CHAT_ID":         c.ChatID != 0,
		"APP_URL":            c.AppURL != "",
		"GEMINI_API_KEY":     c.GeminiAPIKey != "",
		"SHEET_ID":           c.SheetID != "",
	}

	var missing []string
	for _, name := range names {
		set, known := values[name]
		if !known {
			return fmt.Errorf("Require: unknown setting %s", name)
		}
		if !set {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", domain.ErrConfig, missing)
	}
	return nil
}

// NeedsSheets reports whether any configured component reads the spreadsheet.
func (c *Config) NeedsSheets() bool {
	return c.LedgerBackend == LedgerSheets || c.TaxonomyFile == ""
}

// NotionEnabled reports whether rows are mirrored to Notion.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: TIMEZONE %q: %v", domain.ErrConfig, c.Timezone, err)
	}
	return loc, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	return logger.Configure(w, c.LogLevel, c.LogFormat)
}

// Parse reads a Config from args and the environment.
func Parse(args []string, options ...kong.Option) (*Config, error) {
	var cfg Config

	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return nil, fmt.Errorf("Parse: build parser: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}

	return &cfg, nil
}
