package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// Helper formulas written in columns K and L of every row. They read the
// date in column A of their own row and the statistics window configured in
// 'Estadísticas'!B1:B2.
const (
	inWindowFormula = `=AND(INDIRECT("RC1",FALSE)>='Estadísticas'!$B$1,INDIRECT("RC1",FALSE)<='Estadísticas'!$B$2)`
	monthKeyFormula = `=TEXT(INDIRECT("RC1",FALSE),"YYYY-MM")`
)

// Ledger sheet columns, zero-based.
const (
	colDate = iota
	colAmount
	colAccount
	colCategory
	colSubcategory
	colDescription
	colNotes
	colAmountCopy
	colType
	colCurrency
	colInWindow
	colMonth
	colAsset
	colQuantity
	colUnitPrice
	columnCount
)

// SheetsStore keeps the ledger in a spreadsheet tab, one movement per row
// below a header row.
type SheetsStore struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
}

var _ Store = (*SheetsStore)(nil)

// NewSheetsStore creates a store on the given tab.
func NewSheetsStore(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsStore {
	return &SheetsStore{srv: srv, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (s *SheetsStore) rangeA1(suffix string) string {
	return "'" + s.sheetName + "'!" + suffix
}

// AppendRows appends all rows in one request.
func (s *SheetsStore) AppendRows(ctx context.Context, rows []domain.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, rowValues(r))
	}

	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeA1("A:O"), &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("SheetsStore.AppendRows: %w", s.classify(err))
	}
	return nil
}

// SortByDateDesc sorts every row below the header by column A, newest first.
func (s *SheetsStore) SortByDateDesc(ctx context.Context) error {
	sheetID, err := s.sheetID(ctx)
	if err != nil {
		return fmt.Errorf("SheetsStore.SortByDateDesc: %w", err)
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			SortRange: &sheets.SortRangeRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    1,
					StartColumnIndex: 0,
					EndColumnIndex:   columnCount,
				},
				SortSpecs: []*sheets.SortSpec{{
					DimensionIndex: colDate,
					SortOrder:      "DESCENDING",
				}},
			},
		}},
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("SheetsStore.SortByDateDesc: %w", err)
	}
	return nil
}

func (s *SheetsStore) sheetID(ctx context.Context) (int64, error) {
	ss, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: sheet %q not found", domain.ErrConfig, s.sheetName)
}

// ReadAllRows reads every data row. Rows whose date or amount cannot be
// read are skipped.
func (s *SheetsStore) ReadAllRows(ctx context.Context) ([]domain.LedgerRow, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeA1("A2:O")).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("SheetsStore.ReadAllRows: %w", s.classify(err))
	}

	rows := make([]domain.LedgerRow, 0, len(resp.Values))
	for _, v := range resp.Values {
		if r, ok := parseRow(v); ok {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// classify marks a rejected range, which is how a missing tab surfaces.
func (s *SheetsStore) classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusNotFound) {
		return fmt.Errorf("%w: sheet %q: %v", domain.ErrConfig, s.sheetName, err)
	}
	return err
}

func rowValues(r domain.LedgerRow) []interface{} {
	v := make([]interface{}, columnCount)
	v[colDate] = domain.FormatDate(r.Date)
	v[colAmount] = r.Amount.InexactFloat64()
	v[colAccount] = r.Account
	v[colCategory] = r.Category
	v[colSubcategory] = r.Subcategory
	v[colDescription] = r.Description
	v[colNotes] = ""
	v[colAmountCopy] = r.Amount.InexactFloat64()
	v[colType] = string(r.MovementType)
	v[colCurrency] = r.Currency
	v[colInWindow] = inWindowFormula
	v[colMonth] = monthKeyFormula
	v[colAsset] = ""
	v[colQuantity] = ""
	v[colUnitPrice] = ""
	if r.MovementType == domain.MovementInvestment {
		v[colAsset] = r.Asset
		v[colQuantity] = r.Quantity.InexactFloat64()
		v[colUnitPrice] = r.UnitPrice.InexactFloat64()
	}
	return v
}

func parseRow(v []interface{}) (domain.LedgerRow, bool) {
	date, err := domain.ParseDate(cellString(v, colDate))
	if err != nil {
		return domain.LedgerRow{}, false
	}
	amount, ok := cellDecimal(v, colAmount)
	if !ok {
		return domain.LedgerRow{}, false
	}

	r := domain.LedgerRow{
		Date:         date,
		Amount:       amount,
		Account:      cellString(v, colAccount),
		Category:     cellString(v, colCategory),
		Subcategory:  cellString(v, colSubcategory),
		Description:  cellString(v, colDescription),
		MovementType: domain.MovementType(cellString(v, colType)),
		Currency:     cellString(v, colCurrency),
		Asset:        cellString(v, colAsset),
	}
	r.Quantity, _ = cellDecimal(v, colQuantity)
	r.UnitPrice, _ = cellDecimal(v, colUnitPrice)
	return r, true
}

func cellString(v []interface{}, i int) string {
	if i >= len(v) || v[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v[i]))
}

func cellDecimal(v []interface{}, i int) (decimal.Decimal, bool) {
	if i >= len(v) || v[i] == nil {
		return decimal.Zero, false
	}
	switch x := v[i].(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case string:
		d, err := domain.Numeric(x).Decimal()
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
