package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Config reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_WEBHOOK_SECRET", "MY_CHAT_ID", "APP_URL",
		"GEMINI_API_KEY", "GEMINI_MODEL", "SHEET_ID", "LEDGER_SHEET_NAME",
		"CONFIG_SHEET_NAME", "ERROR_SHEET_NAME", "TAXONOMY_FILE", "LEDGER_BACKEND",
		"GCP_PROJECT", "BIGQUERY_DATASET", "PENDING_BACKEND", "GCS_AUDIO_BUCKET",
		"NOTION_TOKEN", "NOTION_DATABASE_ID", "TIMEZONE", "LOG_LEVEL", "LOG_FORMAT", "PORT",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "Registros", cfg.LedgerSheetName)
	assert.Equal(t, "Categorías y subcategorías", cfg.ConfigSheetName)
	assert.Equal(t, "Bot Errors", cfg.ErrorSheetName)
	assert.Equal(t, LedgerSheets, cfg.LedgerBackend)
	assert.Equal(t, PendingMemory, cfg.PendingBackend)
	assert.Equal(t, "finance", cfg.BigQueryDataset)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.Timezone)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.NeedsSheets())
	assert.False(t, cfg.NotionEnabled())
}

func TestParse_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MY_CHAT_ID", "4242")
	t.Setenv("SHEET_ID", "sheet-1")
	t.Setenv("LEDGER_BACKEND", "bigquery")
	t.Setenv("GCP_PROJECT", "my-project")
	t.Setenv("PENDING_BACKEND", "firestore")
	t.Setenv("NOTION_TOKEN", "secret_x")
	t.Setenv("NOTION_DATABASE_ID", "db-1")
	t.Setenv("PORT", "9090")

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramBotToken)
	assert.Equal(t, int64(4242), cfg.ChatID)
	assert.Equal(t, LedgerBigQuery, cfg.LedgerBackend)
	assert.Equal(t, PendingFirestore, cfg.PendingBackend)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.NotionEnabled())
	assert.True(t, cfg.NeedsSheets())
}

func TestParse_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_MODEL", "from-env")

	cfg, err := Parse([]string{"--gemini-model=from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.GeminiModel)
}

func TestParse_TaxonomyFileWithBigQuerySkipsSheets(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts: [Banco]\n"), 0o600))
	t.Setenv("TAXONOMY_FILE", path)
	t.Setenv("LEDGER_BACKEND", "bigquery")
	t.Setenv("GCP_PROJECT", "p")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.False(t, cfg.NeedsSheets())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bigquery without project", map[string]string{"LEDGER_BACKEND": "bigquery"}, "requires GCP_PROJECT"},
		{"firestore without project", map[string]string{"PENDING_BACKEND": "firestore"}, "requires GCP_PROJECT"},
		{"notion token only", map[string]string{"NOTION_TOKEN": "x"}, "must be set together"},
		{"notion database only", map[string]string{"NOTION_DATABASE_ID": "x"}, "must be set together"},
		{"unknown timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "Mars/Olympus"},
		{"unknown backend", map[string]string{"LEDGER_BACKEND": "excel"}, "excel"},
		{"bad chat id", map[string]string{"MY_CHAT_ID": "abc"}, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Parse(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_WrapsConfigError(t *testing.T) {
	cfg := Config{LedgerBackend: LedgerBigQuery, Timezone: "UTC"}
	assert.True(t, errors.Is(cfg.Validate(), domain.ErrConfig))
}

func TestRequire(t *testing.T) {
	cfg := Config{TelegramBotToken: "t", ChatID: 1}

	assert.NoError(t, cfg.Require("TELEGRAM_BOT_TOKEN", "MY_CHAT_ID"))

	err := cfg.Require("TELEGRAM_BOT_TOKEN", "GEMINI_API_KEY", "SHEET_ID")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY SHEET_ID")

	assert.Error(t, cfg.Require("NOPE"))
}

func TestLocationAndLogger(t *testing.T) {
	cfg := Config{Timezone: "America/Argentina/Buenos_Aires", LogLevel: "warn", LogFormat: "json"}

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Argentina/Buenos_Aires", loc.String())

	buf := &bytes.Buffer{}
	log, err := cfg.Logger(buf)
	require.NoError(t, err)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
