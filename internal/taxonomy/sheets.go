package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// SheetsProvider reads the configuration tab of the spreadsheet on every Load.
type SheetsProvider struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
}

var _ Provider = (*SheetsProvider)(nil)

// NewSheetsProvider creates a provider for the given spreadsheet tab.
func NewSheetsProvider(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsProvider {
	return &SheetsProvider{srv: srv, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// Load reads the whole tab and parses it.
func (p *SheetsProvider) Load(ctx context.Context) (*Taxonomy, error) {
	log := logger.FromContext(ctx)

	resp, err := p.srv.Spreadsheets.Values.Get(p.spreadsheetID, quoteSheet(p.sheetName)).Context(ctx).Do()
	if err != nil {
		if isMissingRange(err) {
			return nil, fmt.Errorf("SheetsProvider.Load: %w: sheet %q not found", domain.ErrConfig, p.sheetName)
		}
		return nil, fmt.Errorf("SheetsProvider.Load: read %q: %w", p.sheetName, err)
	}

	t, err := ParseConfigRows(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("SheetsProvider.Load: %w", err)
	}

	log.Debug().
		Int("accounts", len(t.Accounts)).
		Int("expense_categories", t.ExpenseCategories.Len()).
		Int("income_categories", t.IncomeCategories.Len()).
		Int("investment_categories", t.InvestmentCategories.Len()).
		Msg("Loaded taxonomy")

	return t, nil
}

// quoteSheet turns a tab name into an A1 range covering the whole tab.
func quoteSheet(name string) string {
	return "'" + name + "'"
}

// isMissingRange reports whether the API rejected the range, which is how a
// missing tab surfaces.
func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusNotFound
	}
	return false
}
