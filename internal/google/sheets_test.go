package google

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	titles      []string
	values      map[string][][]any
	metaCalls   int
	valueRanges []string
	failMeta    bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/v4/spreadsheets/sheet-1"
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == prefix:
		f.metaCalls++
		if f.failMeta {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		var sheetsJSON []map[string]any
		for i, title := range f.titles {
			sheetsJSON = append(sheetsJSON, map[string]any{"properties": map[string]any{"title": title, "index": i}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheetsJSON})
	case strings.HasPrefix(r.URL.Path, prefix+"/values/"):
		rng := strings.TrimPrefix(r.URL.Path, prefix+"/values/")
		f.valueRanges = append(f.valueRanges, rng)
		title := strings.Trim(rng, "'")
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.values[title]})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *SheetsClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("sheets.NewService: %v", err)
	}
	return NewWithService(slog.New(slog.DiscardHandler), svc)
}

func intPtr(i int) *int { return &i }

func TestFetchRowsFirstSheet(t *testing.T) {
	fake := &fakeSheets{
		titles: []string{"Week Plan", "Archive"},
		values: map[string][][]any{
			"Week Plan": {{"日付", "内容"}, {"7/3", "A"}, {"7/4", 12.5}},
		},
	}
	c := newTestClient(t, fake)
	rows, err := c.FetchRows(context.Background(), "sheet-1", SheetSelector{})
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "A" || rows[2][1] != "12.5" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	if fake.metaCalls != 1 || fake.valueRanges[0] != "'Week Plan'" {
		t.Fatalf("unexpected calls: meta=%d ranges=%v", fake.metaCalls, fake.valueRanges)
	}
}

func TestFetchRowsSelectorPriority(t *testing.T) {
	fake := &fakeSheets{
		titles: []string{"A", "B"},
		values: map[string][][]any{"A": {{"a"}}, "B": {{"b"}}, "Named": {{"n"}}},
	}
	c := newTestClient(t, fake)

	rows, err := c.FetchRows(context.Background(), "sheet-1", SheetSelector{Name: "Named", Index: intPtr(1)})
	if err != nil || rows[0][0] != "n" {
		t.Fatalf("name should win: rows=%v err=%v", rows, err)
	}
	if fake.metaCalls != 0 {
		t.Fatal("metadata must not be fetched when a name is given")
	}

	rows, err = c.FetchRows(context.Background(), "sheet-1", SheetSelector{Index: intPtr(1)})
	if err != nil || rows[0][0] != "b" {
		t.Fatalf("index should pick B: rows=%v err=%v", rows, err)
	}
}

func TestFetchRowsErrors(t *testing.T) {
	c := newTestClient(t, &fakeSheets{titles: []string{"A"}})
	if _, err := c.FetchRows(context.Background(), "sheet-1", SheetSelector{Index: intPtr(3)}); !errors.Is(err, ErrSheetIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}

	c = newTestClient(t, &fakeSheets{})
	if _, err := c.FetchRows(context.Background(), "sheet-1", SheetSelector{}); !errors.Is(err, ErrNoSheets) {
		t.Fatalf("expected no sheets error, got %v", err)
	}

	c = newTestClient(t, &fakeSheets{failMeta: true})
	_, err := c.FetchRows(context.Background(), "sheet-1", SheetSelector{})
	if err == nil || !strings.Contains(err.Error(), "metadata") {
		t.Fatalf("expected metadata error, got %v", err)
	}
}

func TestFetchRowsEmptySheet(t *testing.T) {
	c := newTestClient(t, &fakeSheets{titles: []string{"A"}})
	rows, err := c.FetchRows(context.Background(), "sheet-1", SheetSelector{})
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows, got %v err=%v", rows, err)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(context.Background(), slog.New(slog.DiscardHandler), Credentials{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestQuoteSheetTitle(t *testing.T) {
	if got := quoteSheetTitle("Bob's week"); got != "'Bob''s week'" {
		t.Fatalf("quoteSheetTitle() = %q", got)
	}
}

func TestGetTokenAccounts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"token-lab.json", "token-home.json", "credentials.json", "token-x.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	accounts, err := GetTokenAccounts(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 || accounts[0] != "home" || accounts[1] != "lab" {
		t.Fatalf("unexpected accounts: %v", accounts)
	}
}
