package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompatGenerateText(t *testing.T) {
	var gotAuth string
	var gotReq oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  hello  "}},
			},
		})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "key-123", "test-model", 0.1)
	out, err := g.GenerateText(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "hello" {
		t.Fatalf("output not trimmed: %q", out)
	}
	if gotAuth != "Bearer key-123" {
		t.Fatalf("wrong auth header: %q", gotAuth)
	}
	if gotReq.Model != "test-model" || gotReq.Temperature != 0.1 {
		t.Fatalf("wrong request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Fatalf("wrong messages: %+v", gotReq.Messages)
	}
}

func TestOpenAICompatOmitsEmptySystemPrompt(t *testing.T) {
	var gotReq oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "m", 0)
	if _, err := g.GenerateText(context.Background(), "  ", "question"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("expected single user message, got %+v", gotReq.Messages)
	}
}

func TestOpenAICompatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "k", "m", 0)
	_, err := g.GenerateText(context.Background(), "", "q")
	if err == nil {
		t.Fatal("expected api error")
	}
}

func TestOpenAICompatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "k", "m", 0)
	if _, err := g.GenerateText(context.Background(), "", "q"); err == nil {
		t.Fatal("expected empty-response error")
	}
}
