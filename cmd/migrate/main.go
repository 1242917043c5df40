// Command migrate applies the versioned BigQuery migrations of the ledger
// dataset.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/alecthomas/kong"
	"github.com/dvloznov/finance-bot/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

var cli struct {
	Project   string `help:"GCP project ID." env:"GCP_PROJECT" required:""`
	Dataset   string `help:"BigQuery dataset ID." env:"BIGQUERY_DATASET" default:"finance"`
	AppliedBy string `help:"Name of the tool applying migrations." default:"migrate-cli"`
	DryRun    bool   `help:"List pending migrations without applying them."`
	LogLevel  string `help:"Log level." env:"LOG_LEVEL" default:"info"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("migrate"),
		kong.Description("Apply BigQuery migrations of the finance dataset."),
		kong.UsageOnError(),
	)

	log, err := logger.Configure(os.Stderr, cli.LogLevel, logger.FormatConsole)
	kctx.FatalIfErrorf(err)

	ctx := logger.WithContext(context.Background(), log)

	client, err := bigquery.NewClient(ctx, cli.Project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{client: client, projectID: cli.Project, datasetID: cli.Dataset, appliedBy: cli.AppliedBy}

	log.Info().Str("project", cli.Project).Str("dataset", cli.Dataset).Msg("Connected to BigQuery")

	migrations, skipped, err := readMigrations(embeddedMigrations, "migrations", cli.Project, cli.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	for _, name := range skipped {
		log.Warn().Str("file", name).Msg("Skipping file with invalid format")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	pending, drifted := plan(migrations, applied)
	for _, d := range drifted {
		log.Warn().Str("migration", d.Filename).Msg("Applied migration changed since it ran")
	}

	for _, migration := range pending {
		mlog := log.With().Str("migration", migration.Filename).Logger()
		if cli.DryRun {
			mlog.Info().Msg("[PENDING]")
			continue
		}

		mlog.Info().Msg("[RUN]")
		if err := m.run(ctx, migration.SQL, nil); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := m.record(ctx, migration); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to record migration")
		}
		mlog.Info().Msg("[OK]")
	}

	switch {
	case len(pending) == 0:
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	case cli.DryRun:
		log.Info().Int("count", len(pending)).Msg("Dry run, nothing applied")
	default:
		log.Info().Int("count", len(pending)).Msg("Successfully applied migrations")
	}
}

type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

func (m *migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

// appliedMigrations lists applied migrations. A missing table means none.
func (m *migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	query := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table() + `
		ORDER BY version ASC
	`)
	it, err := query.Read(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// record stores a successfully applied migration in schema_migrations.
func (m *migrator) record(ctx context.Context, migration Migration) error {
	return m.run(ctx, `
		INSERT INTO `+m.table()+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	})
}

// run executes one statement and waits for it.
func (m *migrator) run(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := m.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
