package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/errorsink"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		LedgerBackend:  config.LedgerSheets,
		PendingBackend: config.PendingMemory,
		Timezone:       "America/Argentina/Buenos_Aires",
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := baseConfig()
	cfg.Timezone = "Nowhere/Town"

	_, err := New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestApp_LocalComponents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts: [Banco]\n"), 0o600))

	cfg := baseConfig()
	cfg.TaxonomyFile = path
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	assert.Equal(t, "America/Argentina/Buenos_Aires", a.Location().String())

	provider, err := a.Taxonomy(ctx)
	require.NoError(t, err)
	assert.IsType(t, &taxonomy.FileProvider{}, provider)

	assert.Equal(t, errorsink.LogSink{}, a.ErrorSink(ctx))
	assert.NotNil(t, a.Validator(ctx))

	registry, err := a.Registry(ctx)
	require.NoError(t, err)
	assert.NotNil(t, registry)

	archive, err := a.Archive(ctx)
	require.NoError(t, err)
	assert.Nil(t, archive)
}

func TestApp_MissingSettings(t *testing.T) {
	a, err := New(baseConfig(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Sheets(ctx)
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = a.Taxonomy(ctx)
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = a.Transport()
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = a.Extractor(ctx)
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = a.Service(ctx)
	require.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN MY_CHAT_ID GEMINI_API_KEY")
}
