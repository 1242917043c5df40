// Package ledger writes confirmed movements to the append-only ledger.
package ledger

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
)

// Store is the tabular ledger backend.
type Store interface {
	// AppendRows appends rows in order. A failure may leave earlier rows written.
	AppendRows(ctx context.Context, rows []domain.LedgerRow) error
	// SortByDateDesc re-sorts the ledger, newest first.
	SortByDateDesc(ctx context.Context) error
	// ReadAllRows returns every row in the ledger.
	ReadAllRows(ctx context.Context) ([]domain.LedgerRow, error)
}

// Mirror receives a copy of every posted row. Mirror failures never fail a post.
type Mirror interface {
	MirrorRows(ctx context.Context, rows []domain.LedgerRow) error
}

// Writer posts accepted records.
type Writer struct {
	store    Store
	taxonomy taxonomy.Provider
	mirror   Mirror
	loc      *time.Location
}

// NewWriter creates a writer. Dates derived from message timestamps use loc.
// mirror may be nil.
func NewWriter(store Store, provider taxonomy.Provider, mirror Mirror, loc *time.Location) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{store: store, taxonomy: provider, mirror: mirror, loc: loc}
}

// ResolveDate returns the record's own date, or the calendar date of
// fallback in the writer's location.
func (w *Writer) ResolveDate(record domain.Candidate, fallback time.Time) (civil.Date, error) {
	if record.Date != "" {
		return domain.ParseDate(record.Date)
	}
	return civil.DateOf(fallback.In(w.loc)), nil
}

// Post writes record and returns the rows written. Posting the same record
// twice writes it twice. There is no rollback when a multi-row append fails
// midway.
func (w *Writer) Post(ctx context.Context, record domain.Candidate, fallback time.Time) ([]domain.LedgerRow, error) {
	log := logger.FromContext(ctx)

	date, err := w.ResolveDate(record, fallback)
	if err != nil {
		return nil, fmt.Errorf("Post: resolve date: %w", err)
	}

	t, err := w.taxonomy.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("Post: load taxonomy: %w", err)
	}

	rows := BuildRows(record, t.AccountAssociations, date)
	if err := w.store.AppendRows(ctx, rows); err != nil {
		return nil, fmt.Errorf("Post: %w: %w", domain.ErrLedgerWrite, err)
	}

	if err := w.store.SortByDateDesc(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to sort ledger after append")
	}

	if w.mirror != nil {
		if err := w.mirror.MirrorRows(ctx, rows); err != nil {
			log.Warn().Err(err).Int("rows", len(rows)).Msg("Failed to mirror ledger rows")
		}
	}

	log.Info().
		Str("type", string(record.Kind)).
		Str("date", domain.FormatDate(date)).
		Int("rows", len(rows)).
		Msg("Posted ledger rows")

	return rows, nil
}

// Rows returns the whole ledger.
func (w *Writer) Rows(ctx context.Context) ([]domain.LedgerRow, error) {
	rows, err := w.store.ReadAllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("Rows: %w", err)
	}
	return rows, nil
}
