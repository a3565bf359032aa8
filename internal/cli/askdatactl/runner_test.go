package askdatactl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunAskCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey, gotLLMKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		gotLLMKey = r.Header.Get("X-LLM-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sql":"SELECT 1","result":{"columns":["1"],"rows":[[1]]}}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"-llm-key", "gsk-test",
		"ask", "s-1", "how", "many", "rows?",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/sessions/s-1/ask" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" || gotLLMKey != "gsk-test" {
		t.Fatalf("headers api_key=%q llm_key=%q", gotAPIKey, gotLLMKey)
	}
	if gotBody["question"] != "how many rows?" {
		t.Fatalf("question = %v", gotBody["question"])
	}
	if !strings.Contains(stdout.String(), `"sql": "SELECT 1"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunUploadCommand(t *testing.T) {
	var gotPath, gotFilename, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilename = r.URL.Query().Get("filename")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"table":"data"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "upload", "s-1", "/tmp/sales.csv"}, Options{
		ReadFile: func(name string) ([]byte, error) {
			if name != "/tmp/sales.csv" {
				return nil, errors.New("unexpected file")
			}
			return []byte("name,sales\na,1\n"), nil
		},
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/sessions/s-1/dataset" || gotFilename != "sales.csv" {
		t.Fatalf("path = %s filename = %s", gotPath, gotFilename)
	}
	if gotBody != "name,sales\na,1\n" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestRunQueryWritesOutputFile(t *testing.T) {
	var gotFormat string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormat = r.URL.Query().Get("format")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("name\na\n"))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "result.csv")
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-format", "csv", "-o", out, "query", "s-1", "SELECT name FROM data"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotFormat != "csv" || gotBody["sql"] != "SELECT name FROM data" {
		t.Fatalf("format = %q body = %#v", gotFormat, gotBody)
	}
	written, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(written) != "name\na\n" {
		t.Fatalf("output = %q", written)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"SESSION_NOT_FOUND"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema", "missing"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "SESSION_NOT_FOUND") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunRejectsBadUsage(t *testing.T) {
	tests := [][]string{
		{},
		{"unknown"},
		{"schema"},
		{"ask", "s-1"},
		{"upload", "s-1"},
	}
	for _, args := range tests {
		var stderr bytes.Buffer
		if code := Run(context.Background(), args, Options{Stderr: &stderr}); code != 2 {
			t.Fatalf("Run(%v) exit code = %d, want 2", args, code)
		}
		if !strings.Contains(stderr.String(), "usage: askdatactl") {
			t.Fatalf("Run(%v) stderr = %s", args, stderr.String())
		}
	}
}
