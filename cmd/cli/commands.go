package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alecthomas/kong"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/extraction"
	"github.com/dvloznov/finance-bot/internal/format"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
)

type SetWebhookCmd struct {
	URL string `help:"Webhook URL. Defaults to APP_URL/webhook."`
}

func (cmd *SetWebhookCmd) Run(kctx *kong.Context, rt *runtime) error {
	url := cmd.URL
	if url == "" {
		if err := cli.Config.Require("APP_URL"); err != nil {
			return err
		}
		url = strings.TrimSuffix(cli.Config.AppURL, "/") + "/webhook"
	}

	client, err := rt.app.Transport()
	if err != nil {
		return err
	}
	if err := client.SetWebhook(rt.ctx, url, cli.Config.TelegramWebhookSecret); err != nil {
		return err
	}

	fmt.Fprintf(kctx.Stdout, "Webhook of @%s set to %s\n", client.Username(), url)
	return nil
}

type DeleteWebhookCmd struct{}

func (cmd *DeleteWebhookCmd) Run(kctx *kong.Context, rt *runtime) error {
	client, err := rt.app.Transport()
	if err != nil {
		return err
	}
	if err := client.DeleteWebhook(rt.ctx); err != nil {
		return err
	}

	fmt.Fprintf(kctx.Stdout, "Webhook of @%s removed\n", client.Username())
	return nil
}

type TaxonomyCmd struct{}

func (cmd *TaxonomyCmd) Run(kctx *kong.Context, rt *runtime) error {
	provider, err := rt.app.Taxonomy(rt.ctx)
	if err != nil {
		return err
	}
	t, err := provider.Load(rt.ctx)
	if err != nil {
		return err
	}

	out := kctx.Stdout
	fmt.Fprintln(out, "Accounts:")
	for _, a := range t.Accounts {
		if assoc, ok := t.AccountAssociations[a]; ok && assoc != "" {
			fmt.Fprintf(out, "  %s -> %s\n", a, assoc)
			continue
		}
		fmt.Fprintf(out, "  %s\n", a)
	}

	printCategories(out, "Expense categories", t.ExpenseCategories)
	printCategories(out, "Income categories", t.IncomeCategories)
	printCategories(out, "Investment categories", t.InvestmentCategories)
	return nil
}

func printCategories(out io.Writer, title string, c taxonomy.Categories) {
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, name := range c.Names() {
		fmt.Fprintf(out, "  %s\n", name)
		for _, sub := range c.Subcategories(name) {
			fmt.Fprintf(out, "    %s\n", taxonomy.Leaf(sub))
		}
	}
}

type ExtractCmd struct {
	Text      string `arg:"" optional:"" help:"Message text."`
	AudioFile string `help:"Read a voice note from a local file." type:"existingfile" xor:"source"`
	AudioURI  string `help:"Read an archived voice note from gs://." xor:"source"`
}

func (cmd *ExtractCmd) Run(kctx *kong.Context, rt *runtime) error {
	content, err := cmd.content(rt)
	if err != nil {
		return err
	}

	extractor, err := rt.app.Extractor(rt.ctx)
	if err != nil {
		return err
	}
	provider, err := rt.app.Taxonomy(rt.ctx)
	if err != nil {
		return err
	}

	candidate, err := extractor.Extract(rt.ctx, content, "")
	if errors.Is(err, extraction.ErrNoRecord) {
		fmt.Fprintln(kctx.Stdout, "No movement found.")
		return nil
	}
	if err != nil {
		return err
	}

	t, err := provider.Load(rt.ctx)
	if err != nil {
		return err
	}
	result := rt.app.Validator(rt.ctx).Validate(rt.ctx, candidate, t)

	fmt.Fprintln(kctx.Stdout, format.Record(candidate, candidate.Date, ""))
	if !result.Valid {
		fmt.Fprintf(kctx.Stdout, "\nRejected: %s\n", result.Reason)
		return nil
	}

	date := civil.DateOf(time.Now().In(rt.app.Location()))
	if candidate.Date != "" {
		if date, err = domain.ParseDate(candidate.Date); err != nil {
			return err
		}
	}
	fmt.Fprintln(kctx.Stdout, "\nLedger rows:")
	for _, row := range ledger.BuildRows(candidate, t.AccountAssociations, date) {
		fmt.Fprintf(kctx.Stdout, "  %s  %12s  %-20s %s\n",
			domain.FormatDate(row.Date), row.Amount.StringFixed(2), row.Account, row.Description)
	}
	return nil
}

func (cmd *ExtractCmd) content(rt *runtime) (extraction.Content, error) {
	switch {
	case cmd.AudioFile != "":
		data, err := os.ReadFile(cmd.AudioFile)
		if err != nil {
			return extraction.Content{}, err
		}
		return extraction.Content{Audio: data, AudioMIMEType: "audio/ogg"}, nil
	case cmd.AudioURI != "":
		archive, err := rt.app.Archive(rt.ctx)
		if err != nil {
			return extraction.Content{}, err
		}
		if archive == nil {
			return extraction.Content{}, fmt.Errorf("%w: --audio-uri needs GCS_AUDIO_BUCKET", domain.ErrConfig)
		}
		data, err := archive.Fetch(rt.ctx, cmd.AudioURI)
		if err != nil {
			return extraction.Content{}, err
		}
		return extraction.Content{Audio: data, AudioMIMEType: "audio/ogg"}, nil
	case cmd.Text != "":
		return extraction.Content{Text: cmd.Text}, nil
	}
	return extraction.Content{}, errors.New("nothing to extract: pass a text, --audio-file or --audio-uri")
}

type BalancesCmd struct{}

func (cmd *BalancesCmd) Run(kctx *kong.Context, rt *runtime) error {
	writer, err := rt.app.Ledger(rt.ctx)
	if err != nil {
		return err
	}
	rows, err := writer.Rows(rt.ctx)
	if err != nil {
		return err
	}

	for _, b := range ledger.Balances(rows) {
		fmt.Fprintf(kctx.Stdout, "%-24s %s\n", b.Account, format.Currency(b.Amount))
	}
	return nil
}
