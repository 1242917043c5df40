package errorsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/finance-bot/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

var errorHeader = []interface{}{"Timestamp", "Function", "Error Message", "Detail", "Additional Info"}

// SheetsSink appends one row per error to a tab of the spreadsheet, creating
// the tab on first use. When the sheet cannot be written the error goes to
// the log instead.
type SheetsSink struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	now           func() time.Time
}

var _ Sink = (*SheetsSink)(nil)

// NewSheetsSink creates a sink writing to sheetName. Timestamps are rendered in loc.
func NewSheetsSink(srv *sheets.Service, spreadsheetID, sheetName string, loc *time.Location) *SheetsSink {
	if loc == nil {
		loc = time.UTC
	}
	return &SheetsSink{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		loc:           loc,
		now:           time.Now,
	}
}

// Record appends [timestamp, function, message, detail, info-json].
func (s *SheetsSink) Record(ctx context.Context, function string, err error, info map[string]interface{}) {
	row := []interface{}{
		s.now().In(s.loc).Format("2006-01-02 15:04:05"),
		function,
		errMessage(err),
		errDetail(err),
		infoJSON(info),
	}

	writeErr := s.appendRow(ctx, row)
	if writeErr != nil && isMissingSheet(writeErr) {
		if writeErr = s.createSheet(ctx); writeErr == nil {
			writeErr = s.appendRow(ctx, row)
		}
	}
	if writeErr != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("function", function).Fields(info).Msg("Recorded error")
		log.Error().Err(writeErr).Str("sheet", s.sheetName).Msg("Failed to write error sheet")
	}
}

func (s *SheetsSink) appendRow(ctx context.Context, row []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, "'"+s.sheetName+"'", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("SheetsSink.appendRow: %w", err)
	}
	return nil
}

func (s *SheetsSink) createSheet(ctx context.Context) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.sheetName},
			},
		}},
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("SheetsSink.createSheet: %w", err)
	}
	return s.appendRow(ctx, errorHeader)
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// errDetail lists the concrete types along the wrap chain.
func errDetail(err error) string {
	if err == nil {
		return "no detail"
	}
	detail := fmt.Sprintf("%T", err)
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		detail += " <- " + fmt.Sprintf("%T", e)
	}
	return detail
}

func infoJSON(info map[string]interface{}) string {
	if len(info) == 0 {
		return "{}"
	}
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Sprint(info)
	}
	return string(b)
}

func isMissingSheet(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest
}
