package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8000", "http://localhost:8000"},
		{"https://bb.example.com/", "https://bb.example.com"},
		{"localhost:8000", "http://localhost:8000"},
		{"bb.example.com", "http://bb.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			if got := NewClient(tt.server, "").BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q, want secret", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "browserbox/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(`{"code":"OK","message":"success","data":{"status":"ok","version":"1.2.3"}}`))
	}))
	defer srv.Close()

	var got struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := NewClient(srv.URL, "secret").Get(context.Background(), "/health", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != "ok" || got.Version != "1.2.3" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestClient_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["env"] != "file:///tmp/a.tar.gz" {
			t.Errorf("env = %q", body["env"])
		}
		w.Write([]byte(`{"code":"OK","data":{"result":"done"}}`))
	}))
	defer srv.Close()

	var got struct {
		Result string `json:"result"`
	}
	err := NewClient(srv.URL, "").Post(context.Background(), "/dotask",
		map[string]string{"env": "file:///tmp/a.tar.gz"}, &got)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if got.Result != "done" {
		t.Errorf("Result = %q, want done", got.Result)
	}
}

func TestClient_NoAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Api-Key"]; ok {
			t.Error("X-API-Key sent without a key")
		}
		w.Write([]byte(`{"code":"OK"}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "").Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "envelope",
			status:   http.StatusTooManyRequests,
			body:     `{"code":"BB-SYS-4290","message":"pool exhausted","request_id":"req-1"}`,
			wantCode: "BB-SYS-4290",
			wantMsg:  "[BB-SYS-4290] pool exhausted",
		},
		{
			name:    "plain text",
			status:  http.StatusBadGateway,
			body:    "bad gateway",
			wantMsg: "request failed with status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "").Get(context.Background(), "/x", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Get() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithTimeout(50*time.Millisecond))
	if err := c.Get(context.Background(), "/slow", nil); err == nil {
		t.Fatal("Get() error = nil, want timeout")
	}
}
