package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketscraper/config"
)

func newReader(endpoints ...string) *Reader {
	return NewReader(config.NewsConfig{
		Endpoints:  endpoints,
		ItemsField: "data",
		MaxItems:   10,
		Timeout:    2 * time.Second,
	})
}

func TestFetchIsolatesFailingEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"id":"abc","title":"Bitcoin rally continues","news_site":"CoinDesk","url":"https://x/1","updated_at":1700000000},
			{"id":42,"title":"Ethereum falls","news_site":"The Block","url":"https://x/2","updated_at":"2025-01-02T03:04:05Z"},
			{"title":"No id here","url":"https://x/3"}
		]}`))
	}))
	defer good.Close()

	items, err := newReader(bad.URL, good.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected joined error for failing endpoint")
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != "abc" || items[0].Source != "CoinDesk" || items[0].Endpoint != good.URL {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if !items[0].UpdatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected epoch timestamp %v", items[0].UpdatedAt)
	}
	if items[1].ID != "42" {
		t.Fatalf("numeric id not rendered: %q", items[1].ID)
	}
	if !items[1].UpdatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected RFC3339 timestamp %v", items[1].UpdatedAt)
	}
	if items[2].ID != "" || !items[2].UpdatedAt.IsZero() {
		t.Fatalf("absent fields should stay empty: %+v", items[2])
	}
}

func TestFetchMissingFieldIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	items, err := newReader(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("missing field should not fail: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	if _, err := newReader(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestFetchCapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"title":"a"},{"title":"b"},{"title":"c"}]}`))
	}))
	defer srv.Close()

	r := newReader(srv.URL)
	r.maxItems = 2
	items, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestFetchNoEndpoints(t *testing.T) {
	items, err := newReader().Fetch(context.Background())
	if err != nil || len(items) != 0 {
		t.Fatalf("unexpected result %v %v", items, err)
	}
}

func TestParseTimestampMillis(t *testing.T) {
	got := parseTimestamp([]byte(`1700000000123`))
	if got.UnixMilli() != 1700000000123 {
		t.Fatalf("unexpected millis timestamp %v", got)
	}
	if !parseTimestamp([]byte(`"yesterday"`)).IsZero() {
		t.Fatal("unparseable timestamp should be zero")
	}
}
