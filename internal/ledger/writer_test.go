package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows      []domain.LedgerRow
	appendErr error
	sortErr   error
	sorts     int
}

func (f *fakeStore) AppendRows(ctx context.Context, rows []domain.LedgerRow) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeStore) SortByDateDesc(ctx context.Context) error {
	f.sorts++
	return f.sortErr
}

func (f *fakeStore) ReadAllRows(ctx context.Context) ([]domain.LedgerRow, error) {
	return f.rows, nil
}

type fakeProvider struct {
	taxonomy *taxonomy.Taxonomy
	err      error
}

func (f *fakeProvider) Load(ctx context.Context) (*taxonomy.Taxonomy, error) {
	return f.taxonomy, f.err
}

type fakeMirror struct {
	rows []domain.LedgerRow
	err  error
}

func (f *fakeMirror) MirrorRows(ctx context.Context, rows []domain.LedgerRow) error {
	f.rows = append(f.rows, rows...)
	return f.err
}

var argentina = time.FixedZone("ART", -3*60*60)

func newTestWriter(store Store, mirror Mirror) *Writer {
	provider := &fakeProvider{taxonomy: &taxonomy.Taxonomy{
		Accounts:            []string{"Efectivo", "Visa Galicia", "Banco Galicia"},
		AccountAssociations: map[string]string{"Visa Galicia": "Banco Galicia"},
	}}
	return NewWriter(store, provider, mirror, argentina)
}

func expense() domain.Candidate {
	return domain.Candidate{
		Kind:        domain.KindExpense,
		Amount:      "1500",
		Description: "Nafta",
		Category:    "Auto",
		Subcategory: "Auto > Nafta",
		Account:     "Visa Galicia",
		Date:        "20/02/2024",
	}
}

func TestWriter_Post(t *testing.T) {
	store := &fakeStore{}
	mirror := &fakeMirror{}
	w := newTestWriter(store, mirror)

	rows, err := w.Post(context.Background(), expense(), time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Banco Galicia", rows[0].Account)
	assert.Equal(t, "20/02/2024", domain.FormatDate(rows[0].Date))
	assert.Equal(t, rows, store.rows)
	assert.Equal(t, rows, mirror.rows)
	assert.Equal(t, 1, store.sorts)
}

func TestWriter_PostTwiceWritesTwice(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(store, nil)

	_, err := w.Post(context.Background(), expense(), time.Now())
	require.NoError(t, err)
	_, err = w.Post(context.Background(), expense(), time.Now())
	require.NoError(t, err)

	assert.Len(t, store.rows, 2)
}

func TestWriter_FallbackDateUsesLocation(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(store, nil)

	record := expense()
	record.Date = ""
	fallback := time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC)

	rows, err := w.Post(context.Background(), record, fallback)
	require.NoError(t, err)
	assert.Equal(t, "15/01/2024", domain.FormatDate(rows[0].Date))
}

func TestWriter_AppendFailure(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("quota exceeded")}
	w := newTestWriter(store, nil)

	_, err := w.Post(context.Background(), expense(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLedgerWrite))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestWriter_SortAndMirrorFailuresAreNotFatal(t *testing.T) {
	store := &fakeStore{sortErr: errors.New("sort failed")}
	mirror := &fakeMirror{err: errors.New("notion down")}
	w := newTestWriter(store, mirror)

	rows, err := w.Post(context.Background(), expense(), time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, store.rows, 1)
}

func TestWriter_TaxonomyFailure(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(store, &fakeProvider{err: domain.ErrConfig}, nil, argentina)

	_, err := w.Post(context.Background(), expense(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfig))
	assert.Empty(t, store.rows)
}

func TestWriter_BadDate(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(store, nil)

	record := expense()
	record.Date = "30/02/2024"
	_, err := w.Post(context.Background(), record, time.Now())
	require.Error(t, err)
	assert.Empty(t, store.rows)
}

func TestBalances(t *testing.T) {
	rows := []domain.LedgerRow{
		{Account: "Efectivo", Amount: decimal.RequireFromString("1000")},
		{Account: "Banco", Amount: decimal.RequireFromString("-250.50")},
		{Account: "Efectivo", Amount: decimal.RequireFromString("-300")},
		{Account: "", Amount: decimal.RequireFromString("99")},
	}

	got := Balances(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "Banco", got[0].Account)
	assert.Equal(t, "-250.5", got[0].Amount.String())
	assert.Equal(t, "Efectivo", got[1].Account)
	assert.Equal(t, "700", got[1].Amount.String())
}
