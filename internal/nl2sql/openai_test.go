package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripMarkdownSQL(t *testing.T) {
	got := stripMarkdownSQL("```sql\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
}

func TestOpenAICompleterSendsPromptAndCredential(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"SELECT * FROM data"}}]}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL + "/", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	text, err := completer.Complete(context.Background(), CompletionRequest{APIKey: "gsk-1", Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "SELECT * FROM data" {
		t.Fatalf("text = %q", text)
	}
	if gotAuth != "Bearer gsk-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "test-model" || len(gotBody.Messages) != 1 || gotBody.Messages[0].Content != "hello" {
		t.Fatalf("body = %#v", gotBody)
	}
}

func TestOpenAICompleterReportsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	_, err = completer.Complete(context.Background(), CompletionRequest{APIKey: "bad", Prompt: "x"})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Complete() error = %v, want ServiceError", err)
	}
	if serviceErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d", serviceErr.StatusCode)
	}
	if serviceErr.Err.Error() != "Invalid API Key" {
		t.Fatalf("message = %q", serviceErr.Err.Error())
	}
}

func TestOpenAICompleterRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	_, err = completer.Complete(context.Background(), CompletionRequest{APIKey: "k", Prompt: "x"})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Complete() error = %v, want ServiceError", err)
	}
}

func TestOpenAICompleterNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: url})
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	_, err = completer.Complete(context.Background(), CompletionRequest{APIKey: "k", Prompt: "x"})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Complete() error = %v, want ServiceError", err)
	}
	if serviceErr.StatusCode != 0 {
		t.Fatalf("StatusCode = %d", serviceErr.StatusCode)
	}
}

func TestNewOpenAICompleterDefaults(t *testing.T) {
	completer, err := NewOpenAICompleter(OpenAIConfig{})
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	if completer.Model() != DefaultModel {
		t.Fatalf("Model() = %q", completer.Model())
	}
	if completer.client.Timeout != 0 {
		t.Fatalf("client timeout = %s", completer.client.Timeout)
	}
	if _, err := NewOpenAICompleter(OpenAIConfig{BaseURL: "ftp://x"}); err == nil {
		t.Fatal("expected error for non-http base URL")
	}
}
