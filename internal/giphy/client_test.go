package giphy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDisabledWithoutKey(t *testing.T) {
	c := NewClient("  ", 10, nil)
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if got := c.Search(context.Background(), "cats"); got != nil {
		t.Fatalf("expected no results, got %v", got)
	}
}

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "cats" || r.URL.Query().Get("api_key") != "k" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"data":[
			{"images":{"fixed_height":{"url":"https://g/1.gif"}}},
			{"images":{"original":{"url":"https://g/2.gif"}}},
			{"images":{}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("k", 5, nil).WithBaseURL(srv.URL)
	got := c.Search(context.Background(), "cats")
	if len(got) != 2 || got[0] != "https://g/1.gif" || got[1] != "https://g/2.gif" {
		t.Fatalf("unexpected results %v", got)
	}
}

func TestSearchFailureYieldsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", 5, nil).WithBaseURL(srv.URL)
	if got := c.Search(context.Background(), ""); len(got) != 0 {
		t.Fatalf("expected no results on rate limit, got %v", got)
	}
}
