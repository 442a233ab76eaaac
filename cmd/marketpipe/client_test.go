package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketpipe/internal/api"
)

func TestRequestPathEscapesSegments(t *testing.T) {
	got := requestPath("acme corp", "q1/review", "status")
	want := "/api/requests/acme%20corp/q1%2Freview/status"
	if got != want {
		t.Fatalf("requestPath = %q, want %q", got, want)
	}
}

func TestNewAPIClientNormalizesAddress(t *testing.T) {
	for addr, want := range map[string]string{
		"127.0.0.1:7519":         "http://127.0.0.1:7519",
		"http://localhost:7519/": "http://localhost:7519",
	} {
		client := newAPIClient(addr)
		if client.baseURL != want {
			t.Fatalf("newAPIClient(%q).baseURL = %q, want %q", addr, client.baseURL, want)
		}
	}
}

func TestClientSurfacesAPIErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "request is already in a final state"})
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	err := client.cancel(context.Background(), "proj", "req")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "final state") {
		t.Fatalf("err = %v, want the server's error message", err)
	}
}

func TestClientDecodesResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/requests/proj/req/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			ProjectID: "proj", RequestID: "req", Overall: "processing",
		})
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	status, err := client.status(context.Background(), "proj", "req")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Overall != "processing" {
		t.Fatalf("overall = %q", status.Overall)
	}
}
