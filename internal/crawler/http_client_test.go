package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "PostCrawl-Test/1.0" {
			t.Errorf("Expected User-Agent 'PostCrawl-Test/1.0', got '%s'", ua)
		}
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("Expected custom header X-Trace=abc, got %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Test Page</body></html>"))
	}))
	defer server.Close()

	client := NewHTTPClient("PostCrawl-Test/1.0", 5*time.Second)
	client.SetCustomHeaders(map[string]string{"X-Trace": "abc"})
	defer client.Close()

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "<html><body>Test Page</body></html>" {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestHTTPClientFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>final</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewHTTPClient("PostCrawl-Test/1.0", 5*time.Second)
	body, err := client.Fetch(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "<html>final</html>" {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestHTTPClientErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		retryAfter    string
		wantTransient bool
		wantStatus    bool
		wantDelay     time.Duration
	}{
		{name: "server error", status: http.StatusInternalServerError, wantTransient: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantTransient: true},
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "2", wantTransient: true, wantDelay: 2 * time.Second},
		{name: "not found", status: http.StatusNotFound, wantStatus: true},
		{name: "forbidden", status: http.StatusForbidden, wantStatus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewHTTPClient("PostCrawl-Test/1.0", 5*time.Second)
			_, err := client.Fetch(context.Background(), server.URL)
			if err == nil {
				t.Fatal("Expected error")
			}

			var transient *TransientError
			isTransient := errors.As(err, &transient)
			if isTransient != tt.wantTransient {
				t.Errorf("transient = %v, want %v (err %v)", isTransient, tt.wantTransient, err)
			}
			if isTransient {
				if transient.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", transient.StatusCode, tt.status)
				}
				if transient.RetryAfter != tt.wantDelay {
					t.Errorf("RetryAfter = %v, want %v", transient.RetryAfter, tt.wantDelay)
				}
			}

			var statusErr *StatusError
			if errors.As(err, &statusErr) != tt.wantStatus {
				t.Errorf("status error = %v, want %v (err %v)", !tt.wantStatus, tt.wantStatus, err)
			}
		})
	}
}

func TestHTTPClientNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewHTTPClient("PostCrawl-Test/1.0", time.Second)
	_, err := client.Fetch(context.Background(), addr)
	if !IsTransient(err) {
		t.Errorf("Connection refused should be transient, got %v", err)
	}
}

func TestHTTPClientMalformedURLIsPermanent(t *testing.T) {
	client := NewHTTPClient("PostCrawl-Test/1.0", time.Second)
	_, err := client.Fetch(context.Background(), "http://[::1")
	if err == nil {
		t.Fatal("Expected error for malformed URL")
	}
	if IsTransient(err) {
		t.Errorf("Malformed URL should not be transient: %v", err)
	}
}

func TestHTTPClientNonHTMLIsEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	client := NewHTTPClient("PostCrawl-Test/1.0", 5*time.Second)
	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != nil {
		t.Errorf("Expected empty page for non-HTML content, got %q", body)
	}
}

func TestHTTPClientBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	client := NewHTTPClient("PostCrawl-Test/1.0", 5*time.Second)
	client.SetMaxBodyBytes(1024)
	if _, err := client.Fetch(context.Background(), server.URL); err == nil {
		t.Error("Expected error for oversized body")
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("<html>slow</html>"))
	}))
	defer server.Close()

	client := NewHTTPClient("PostCrawl-Test/1.0", 50*time.Millisecond)
	_, err := client.Fetch(context.Background(), server.URL)
	if !IsTransient(err) {
		t.Errorf("Timeout should be transient, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"-3", 0},
		{"Wed, 01 Jan 2025 12:00:30 GMT", 30 * time.Second},
		{"Wed, 01 Jan 2025 11:00:00 GMT", 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
