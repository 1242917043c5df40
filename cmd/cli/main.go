// Command cli is the operator tool of the finance bot.
package main

import (
	"context"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/rs/zerolog"
)

var cli struct {
	config.Config

	SetWebhook    SetWebhookCmd    `cmd:"" help:"Register the bot server as the Telegram webhook."`
	DeleteWebhook DeleteWebhookCmd `cmd:"" help:"Remove the Telegram webhook."`
	Taxonomy      TaxonomyCmd      `cmd:"" help:"Print the configured accounts and categories."`
	Extract       ExtractCmd       `cmd:"" help:"Extract and validate a movement without posting it."`
	Balances      BalancesCmd      `cmd:"" help:"Print the balance of every account."`
}

// runtime is what every command receives.
type runtime struct {
	ctx context.Context
	app *app.App
	log zerolog.Logger
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("cli"),
		kong.Description("Operator tool of the personal finance bot."),
		kong.UsageOnError(),
	)

	kctx.FatalIfErrorf(cli.Config.Validate())

	log, err := cli.Config.Logger(os.Stderr)
	kctx.FatalIfErrorf(err)

	a, err := app.New(&cli.Config, log)
	kctx.FatalIfErrorf(err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	kctx.FatalIfErrorf(kctx.Run(&runtime{ctx: ctx, app: a, log: log}))
}
