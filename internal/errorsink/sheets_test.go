package errorsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type fakeSheet struct {
	mu      sync.Mutex
	exists  bool
	rows    [][]interface{}
	failAll bool
	created int
}

func (f *fakeSheet) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case f.failAll:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		f.exists = true
		f.created++
		_, _ = w.Write([]byte(`{}`))
	case strings.HasSuffix(r.URL.Path, ":append"):
		if !f.exists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range"}}`))
			return
		}
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newSink(t *testing.T, f *fakeSheet) *SheetsSink {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(ts.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)

	s := NewSheetsSink(srv, "sheet-id", "Bot Errors", time.UTC)
	s.now = func() time.Time { return time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC) }
	return s
}

func TestSheetsSink_CreatesSheetOnFirstUse(t *testing.T) {
	f := &fakeSheet{}
	s := newSink(t, f)

	err := fmt.Errorf("Post: %w", errors.New("quota exceeded"))
	s.Record(context.Background(), "Writer.Post", err, map[string]interface{}{"chat_id": 42})

	require.Len(t, f.rows, 2)
	assert.Equal(t, 1, f.created)
	assert.Equal(t, "Timestamp", f.rows[0][0])
	assert.Equal(t, []interface{}{
		"2024-03-10 12:30:00",
		"Writer.Post",
		"Post: quota exceeded",
		"*fmt.wrapError <- *errors.errorString",
		`{"chat_id":42}`,
	}, f.rows[1])
}

func TestSheetsSink_FallsBackToLog(t *testing.T) {
	f := &fakeSheet{failAll: true}
	s := newSink(t, f)

	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	assert.NotPanics(t, func() {
		s.Record(ctx, "HandleUpdate", errors.New("boom"), nil)
	})
	assert.Contains(t, buf.String(), "HandleUpdate")
	assert.Contains(t, buf.String(), "Failed to write error sheet")
}
