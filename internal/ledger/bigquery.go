package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// LedgerTable is the BigQuery table holding ledger rows.
const LedgerTable = "ledger_rows"

// bigQueryRow mirrors finance.ledger_rows.
type bigQueryRow struct {
	RowID string `bigquery:"row_id"` // REQUIRED

	Date         civil.Date `bigquery:"date"`          // REQUIRED
	Amount       *big.Rat   `bigquery:"amount"`        // REQUIRED NUMERIC
	Account      string     `bigquery:"account"`       // REQUIRED
	MovementType string     `bigquery:"movement_type"` // REQUIRED
	Currency     string     `bigquery:"currency"`      // REQUIRED
	Description  string     `bigquery:"description"`   // REQUIRED

	Category    bigquery.NullString `bigquery:"category"`    // NULLABLE
	Subcategory bigquery.NullString `bigquery:"subcategory"` // NULLABLE

	Asset     bigquery.NullString `bigquery:"asset"`      // NULLABLE
	Quantity  *big.Rat            `bigquery:"quantity"`   // NULLABLE NUMERIC
	UnitPrice *big.Rat            `bigquery:"unit_price"` // NULLABLE NUMERIC

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// BigQueryStore keeps the ledger in a BigQuery table. Rows are always read
// newest first, so SortByDateDesc has nothing to do.
type BigQueryStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string

	now   func() time.Time
	newID func() string
}

var _ Store = (*BigQueryStore)(nil)

// NewBigQueryStore creates a store on projectID.datasetID.ledger_rows.
func NewBigQueryStore(client *bigquery.Client, projectID, datasetID string) *BigQueryStore {
	return &BigQueryStore{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// AppendRows inserts rows with the streaming inserter.
func (s *BigQueryStore) AppendRows(ctx context.Context, rows []domain.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	created := s.now().UTC()
	out := make([]*bigQueryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, toBigQueryRow(r, s.newID(), created))
	}

	inserter := s.client.DatasetInProject(s.projectID, s.datasetID).Table(LedgerTable).Inserter()
	if err := inserter.Put(ctx, out); err != nil {
		return fmt.Errorf("AppendRows: inserting rows: %w", err)
	}
	return nil
}

// SortByDateDesc is a no-op; ReadAllRows orders by date.
func (s *BigQueryStore) SortByDateDesc(ctx context.Context) error {
	return nil
}

// ReadAllRows returns all rows, newest date first.
func (s *BigQueryStore) ReadAllRows(ctx context.Context) ([]domain.LedgerRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			row_id,
			date,
			amount,
			account,
			movement_type,
			currency,
			description,
			category,
			subcategory,
			asset,
			quantity,
			unit_price,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		ORDER BY date DESC, created_ts DESC
	`, s.projectID, s.datasetID, LedgerTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadAllRows: query read: %w", err)
	}

	var rows []domain.LedgerRow
	for {
		var r bigQueryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadAllRows: iter next: %w", err)
		}
		row, err := fromBigQueryRow(r)
		if err != nil {
			return nil, fmt.Errorf("ReadAllRows: row %s: %w", r.RowID, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func toBigQueryRow(r domain.LedgerRow, id string, created time.Time) *bigQueryRow {
	row := &bigQueryRow{
		RowID:        id,
		Date:         r.Date,
		Amount:       r.Amount.Rat(),
		Account:      r.Account,
		MovementType: string(r.MovementType),
		Currency:     r.Currency,
		Description:  r.Description,
		Category:     nullString(r.Category),
		Subcategory:  nullString(r.Subcategory),
		Asset:        nullString(r.Asset),
		CreatedTS:    created,
	}
	if r.Asset != "" {
		row.Quantity = r.Quantity.Rat()
		row.UnitPrice = r.UnitPrice.Rat()
	}
	return row
}

func fromBigQueryRow(r bigQueryRow) (domain.LedgerRow, error) {
	amount, err := ratToDecimal(r.Amount)
	if err != nil {
		return domain.LedgerRow{}, fmt.Errorf("amount: %w", err)
	}
	qty, err := ratToDecimal(r.Quantity)
	if err != nil {
		return domain.LedgerRow{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := ratToDecimal(r.UnitPrice)
	if err != nil {
		return domain.LedgerRow{}, fmt.Errorf("unit_price: %w", err)
	}

	return domain.LedgerRow{
		Date:         r.Date,
		Amount:       amount,
		Account:      r.Account,
		Category:     r.Category.StringVal,
		Subcategory:  r.Subcategory.StringVal,
		Description:  r.Description,
		MovementType: domain.MovementType(r.MovementType),
		Currency:     r.Currency,
		Asset:        r.Asset.StringVal,
		Quantity:     qty,
		UnitPrice:    price,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// NUMERIC has scale 9.
func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(9))
}
