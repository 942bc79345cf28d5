package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestValidateSource(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/resume.pdf", false},
		{"http://example.com/files/CV.PDF", false},
		{"https://example.com/resume.docx", true},
		{"https://example.com/resume", true},
		{"ftp://example.com/resume.pdf", true},
		{"not a url", true},
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateSource(tt.url)
		if tt.wantErr && !errors.Is(err, ErrInvalidSource) {
			t.Errorf("ValidateSource(%q) = %v, want ErrInvalidSource", tt.url, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ValidateSource(%q) = %v, want nil", tt.url, err)
		}
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/files/jane-doe-cv.pdf", "jane-doe-cv"},
		{"https://example.com/resume.pdf", "resume"},
	}
	for _, tt := range tests {
		if got := Title(tt.url); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFetch_InvalidSourceSkipsNetwork(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), srv.URL+"/resume.docx")
	if !errors.Is(err, ErrInvalidSource) {
		t.Errorf("err = %v, want ErrInvalidSource", err)
	}
	if n := atomic.LoadInt64(&hits); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestFetch_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	data, err := f.Fetch(context.Background(), srv.URL+"/resume.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Errorf("data = %q", data)
	}
}

func TestFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.pdf")
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("err = %v, want ErrFetchFailed", err)
	}
}

func TestExtractPages_NotAPDF(t *testing.T) {
	_, err := ExtractPages([]byte("this is not a pdf"))
	if !errors.Is(err, ErrExtractFailed) {
		t.Errorf("err = %v, want ErrExtractFailed", err)
	}
}
