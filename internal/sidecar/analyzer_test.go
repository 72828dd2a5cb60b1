package sidecar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnalyze_Success(t *testing.T) {
	const responseBody = `{"choices":[{"message":{"content":"{\"summary\":\"note\"}"}}]}`

	var gotAuth, gotPath string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write([]byte(responseBody))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "sk-test", "gpt-4o-mini")
	raw, err := client.Analyze(context.Background(), "buy milk tomorrow")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// The body is stored verbatim; no unwrapping here.
	if raw != responseBody {
		t.Errorf("expected verbatim body, got %q", raw)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "buy milk tomorrow" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestAnalyze_NoKeyOmitsAuthHeader(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "", "m")
	if _, err := client.Analyze(context.Background(), "text"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sawAuth {
		t.Error("expected no Authorization header without a key")
	}
}

func TestAnalyze_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "bad", "m")
	_, err := client.Analyze(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "API error: status 401") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestNewChatClient_TrimsTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewChatClient(server.URL+"/", "", "m")
	if _, err := client.Analyze(context.Background(), "text"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("unexpected path: %q", gotPath)
	}
}
