package askdatactl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	LLMKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
	// ReadFile defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
}

var errUsage = errors.New("usage")

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	readFile := defaults.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	fs := flag.NewFlagSet("askdatactl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askdata API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "service API key sent as X-API-Key")
	llmKey := fs.String("llm-key", defaults.LLMKey, "text completion API key sent as X-LLM-API-Key")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	format := fs.String("format", "", "query result format: json, csv or parquet")
	export := fs.Bool("export", false, "write query results to the object store")
	output := fs.String("o", "", "write a csv or parquet query result to this file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	req, err := buildRequest(fs.Args(), *format, *export, readFile)
	if err != nil {
		if !errors.Is(err, errUsage) {
			_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		}
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint, *apiKey, *llmKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if *output != "" {
		if err := os.WriteFile(*output, responseBody, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = stdout.Write(responseBody)
	}
	return 0
}

func buildRequest(args []string, format string, export bool, readFile func(string) ([]byte, error)) (request, error) {
	command := strings.TrimSpace(args[0])
	rest := args[1:]
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "create":
		return request{method: http.MethodPost, path: "/v1/sessions"}, nil
	case "close":
		if len(rest) != 1 {
			return request{}, errUsage
		}
		return request{method: http.MethodDelete, path: sessionPath(rest[0], "")}, nil
	case "upload":
		if len(rest) != 2 {
			return request{}, errUsage
		}
		raw, err := readFile(rest[1])
		if err != nil {
			return request{}, fmt.Errorf("read dataset: %w", err)
		}
		path := sessionPath(rest[0], "/dataset") + "?filename=" + url.QueryEscape(filepath.Base(rest[1]))
		return request{method: http.MethodPut, path: path, body: raw, contentType: "application/octet-stream"}, nil
	case "import":
		if len(rest) != 2 {
			return request{}, errUsage
		}
		return jsonRequest(http.MethodPost, sessionPath(rest[0], "/dataset/import"), map[string]any{"object_key": rest[1]})
	case "schema":
		if len(rest) != 1 {
			return request{}, errUsage
		}
		return request{method: http.MethodGet, path: sessionPath(rest[0], "/schema")}, nil
	case "ask":
		if len(rest) < 2 {
			return request{}, errUsage
		}
		return jsonRequest(http.MethodPost, sessionPath(rest[0], "/ask"), map[string]any{"question": strings.Join(rest[1:], " ")})
	case "query":
		if len(rest) < 2 {
			return request{}, errUsage
		}
		path := sessionPath(rest[0], "/query")
		if format != "" {
			path += "?format=" + url.QueryEscape(format)
		}
		payload := map[string]any{"sql": strings.Join(rest[1:], " ")}
		if export {
			payload["export"] = true
		}
		return jsonRequest(http.MethodPost, path, payload)
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func jsonRequest(method, path string, payload any) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, err
	}
	return request{method: method, path: path, body: body, contentType: "application/json"}, nil
}

func sessionPath(id, suffix string) string {
	return "/v1/sessions/" + url.PathEscape(strings.TrimSpace(id)) + suffix
}

func doRequest(ctx context.Context, client *http.Client, r request, endpoint, apiKey, llmKey string) (int, []byte, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(llmKey) != "" {
		req.Header.Set("X-LLM-API-Key", strings.TrimSpace(llmKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdatactl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                     GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                      GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  create                     POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  close <session>            DELETE /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  upload <session> <file>    PUT /v1/sessions/{id}/dataset")
	_, _ = fmt.Fprintln(w, "  import <session> <key>     POST /v1/sessions/{id}/dataset/import")
	_, _ = fmt.Fprintln(w, "  schema <session>           GET /v1/sessions/{id}/schema")
	_, _ = fmt.Fprintln(w, "  ask <session> <question>   POST /v1/sessions/{id}/ask")
	_, _ = fmt.Fprintln(w, "  query <session> <sql>      POST /v1/sessions/{id}/query")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
