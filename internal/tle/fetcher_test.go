package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const amateurBody = `AO-91
1 43017U 17073E   24100.50000000  .00002000  00000-0  10000-3 0  9991
2 43017  97.7000 150.0000 0025000  90.0000 270.0000 14.80000000    01
`

const issBody = `ISS (ZARYA)
1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9993
2 25544  51.6400 208.9163 0006317  69.9862  25.2906 15.49560532    03
`

func TestFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amateurBody))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, testLogger)
	body, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(body) != amateurBody {
		t.Errorf("Fetch() body mismatch:\n%s", body)
	}
	if f.SourceURL() != srv.URL {
		t.Errorf("SourceURL() = %q, want %q", f.SourceURL(), srv.URL)
	}
}

func TestFetcherMergesExtraURLs(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No trailing newline, so the merge has to insert one.
		w.Write([]byte(strings.TrimRight(amateurBody, "\n")))
	}))
	defer primary.Close()

	extra := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issBody))
	}))
	defer extra.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	f := NewFetcher(primary.URL, testLogger, broken.URL, extra.URL)
	body, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	entries, err := Parse(strings.NewReader(string(body)), testLogger)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("merged fetch produced %d entries, want 2", len(entries))
	}
	if entries[0].NORADID != 43017 || entries[1].NORADID != 25544 {
		t.Errorf("unexpected NORAD IDs: %d, %d", entries[0].NORADID, entries[1].NORADID)
	}
}

func TestFetcherPrimaryErrorFails(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer primary.Close()

	f := NewFetcher(primary.URL, testLogger)
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch() returned nil error for a failing primary source")
	}
}

func TestFetcherContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(srv.URL, testLogger)
	if _, err := f.Fetch(ctx); err == nil {
		t.Fatal("Fetch() returned nil error for a cancelled context")
	}
}

func TestNewFetcherDefaultURL(t *testing.T) {
	f := NewFetcher("", testLogger)
	if !strings.Contains(f.SourceURL(), "celestrak.org") {
		t.Errorf("default source URL = %q, want a celestrak.org URL", f.SourceURL())
	}
}

func TestCatalogURL(t *testing.T) {
	got := CatalogURL(25544)
	want := "https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle"
	if got != want {
		t.Errorf("CatalogURL(25544) = %q, want %q", got, want)
	}
}
