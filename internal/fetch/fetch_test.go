package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notebooklm_connector/internal/fetch"
)

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := fetch.NewClient(fetch.Options{Timeout: 10 * time.Millisecond}).Get(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestGet_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	page, err := fetch.NewClient(fetch.Options{}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Body != "<html>ok</html>" {
		t.Fatalf("unexpected body %q", page.Body)
	}
	if !page.IsHTML() {
		t.Fatalf("expected html content type, got %q", page.ContentType)
	}
	if gotUA != fetch.DefaultUserAgent {
		t.Fatalf("expected default user agent, got %q", gotUA)
	}
}

func TestGet_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := fetch.NewClient(fetch.Options{}).Get(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Body != "moved" || page.URL != srv.URL+"/new" {
		t.Fatalf("redirect not followed: %+v", page)
	}
}

func TestGet_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := fetch.NewClient(fetch.Options{}).Get(context.Background(), srv.URL+"/missing")
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", statusErr.StatusCode)
	}
}

func TestPage_IsHTML(t *testing.T) {
	cases := map[string]bool{
		"text/html":                true,
		"TEXT/HTML; charset=utf-8": true,
		"application/json":         false,
		"":                         false,
	}
	for ct, want := range cases {
		if got := (fetch.Page{ContentType: ct}).IsHTML(); got != want {
			t.Errorf("IsHTML(%q)=%v want %v", ct, got, want)
		}
	}
}

func TestSleep_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fetch.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := fetch.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep should not fail: %v", err)
	}
}
