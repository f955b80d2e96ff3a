package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHub mimics the Hub and Inference endpoints and records request paths.
type fakeHub struct {
	mu     sync.Mutex
	paths  []string
	whoami int
	infer  int
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.paths = append(h.paths, r.Method+" "+r.URL.Path)
	h.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer hf_good_token" && h.whoami == 0 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/api/whoami":
		status := h.whoami
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"name":"alice","email":"a@x.com","orgs":[{"name":"acme"}]}`)
	case "/api/models/google/flan-t5-xl":
		w.WriteHeader(http.StatusOK)
	case "/api/models/private/gated":
		w.WriteHeader(http.StatusForbidden)
	case "/inference/models/google/flan-t5-xl":
		w.WriteHeader(h.infer)
		_, _ = io.WriteString(w, `{"error":"Model google/flan-t5-xl is currently loading"}`)
	case "/api/billing/usage":
		_, _ = io.WriteString(w, `{"usage":{"inference":{"requests":4}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *fakeHub) requests() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func setupEnv(t *testing.T, srv *httptest.Server, token string) {
	t.Helper()
	for _, key := range []string{"HUGGINGFACE_API_KEY", "HF_TOKEN", "HFTOKEN_CONFIG", "HF_PROBE_MODEL",
		"HF_PROBE_PROMPT", "HF_PROBE_MAX_NEW_TOKENS", "HF_CHECK_USAGE", "HF_LOOKUP_TIMEOUT",
		"HF_INFERENCE_TIMEOUT", "HF_RATE_LIMIT_PER_MINUTE", "HFTOKEN_HISTORY_PATH", "HFTOKEN_HISTORY_TTL_DAYS",
		"DEBUG", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	t.Setenv("HUGGINGFACE_TOKEN", token)
	t.Setenv("HF_HUB_URL", srv.URL)
	t.Setenv("HF_INFERENCE_URL", srv.URL+"/inference")
	t.Setenv("HF_MODELS", "google/flan-t5-xl,private/gated")
	t.Setenv("HF_PROBE_MODEL", "google/flan-t5-xl")
}

func TestRun_FullWorkflow(t *testing.T) {
	hub := &fakeHub{infer: http.StatusServiceUnavailable}
	srv := httptest.NewServer(hub)
	defer srv.Close()
	setupEnv(t, srv, "hf_good_token")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), Options{Stdout: &stdout, Stderr: &stderr, Strict: true})

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{
		"GET /api/whoami",
		"GET /api/models/google/flan-t5-xl",
		"GET /api/models/private/gated",
		"POST /inference/models/google/flan-t5-xl",
		"GET /api/billing/usage",
	}, hub.requests())

	out := stdout.String()
	assert.Contains(t, out, "User:  alice")
	assert.Contains(t, out, "Orgs:  [acme]")
	assert.Contains(t, out, "Not accessible: private/gated (403)")
	assert.Contains(t, out, "model is loading")
	assert.Contains(t, out, `"requests": 4`)
	assert.NotContains(t, out, "hf_good_token")
	assert.NotContains(t, stderr.String(), "hf_good_token")
}

func TestRun_InvalidTokenStopsEarly(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub)
	defer srv.Close()
	setupEnv(t, srv, "hf_bad_token")

	var stdout bytes.Buffer
	code := Run(context.Background(), Options{Stdout: &stdout, Stderr: io.Discard})

	assert.Equal(t, ExitOK, code, "non-strict runs always exit 0")
	assert.Equal(t, []string{"GET /api/whoami"}, hub.requests())
	assert.Contains(t, stdout.String(), "Token is invalid: 401")

	code = Run(context.Background(), Options{Stdout: io.Discard, Stderr: io.Discard, Strict: true})
	assert.Equal(t, ExitFailed, code)
}

func TestRun_MissingTokenMakesNoRequests(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub)
	defer srv.Close()
	setupEnv(t, srv, "")

	var stdout bytes.Buffer
	code := Run(context.Background(), Options{Stdout: &stdout, Stderr: io.Discard, Strict: true})

	assert.Equal(t, ExitFailed, code)
	assert.Empty(t, hub.requests())
	assert.Contains(t, stdout.String(), "No token found")
}

func TestRun_FlagsOverrideConfigAndJSONOutput(t *testing.T) {
	hub := &fakeHub{infer: http.StatusOK}
	srv := httptest.NewServer(hub)
	defer srv.Close()
	setupEnv(t, srv, "hf_good_token")

	var stdout bytes.Buffer
	code := Run(context.Background(), Options{
		Stdout:  &stdout,
		Stderr:  io.Discard,
		JSON:    true,
		Models:  []string{"private/gated"},
		NoUsage: true,
		NoProbe: true,
	})
	require.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"GET /api/whoami", "GET /api/models/private/gated"}, hub.requests())

	var decoded struct {
		Status string `json:"status"`
		Models []struct {
			Target     string `json:"target"`
			Outcome    string `json:"outcome"`
			StatusCode int    `json:"status_code"`
		} `json:"models"`
		Usage any `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, "passed", decoded.Status)
	require.Len(t, decoded.Models, 1)
	assert.Equal(t, "invalid", decoded.Models[0].Outcome)
	assert.Equal(t, 403, decoded.Models[0].StatusCode)
	assert.Nil(t, decoded.Usage)
}

func TestRun_HistoryRecordsPreviousRun(t *testing.T) {
	hub := &fakeHub{infer: http.StatusOK}
	srv := httptest.NewServer(hub)
	defer srv.Close()
	setupEnv(t, srv, "hf_good_token")
	t.Setenv("HFTOKEN_HISTORY_PATH", filepath.Join(t.TempDir(), "history.json"))

	var first bytes.Buffer
	require.Equal(t, ExitOK, Run(context.Background(), Options{Stdout: &first, Stderr: io.Discard, NoUsage: true}))
	assert.NotContains(t, first.String(), "Last checked")

	var second bytes.Buffer
	require.Equal(t, ExitOK, Run(context.Background(), Options{Stdout: &second, Stderr: io.Discard, NoUsage: true}))
	assert.Contains(t, second.String(), "Last checked")
	assert.Contains(t, second.String(), "(passed)")
}

func TestRun_BadConfigExitCode(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub)
	defer srv.Close()
	setupEnv(t, srv, "hf_good_token")
	t.Setenv("HF_HUB_URL", "not a url")

	var stderr bytes.Buffer
	code := Run(context.Background(), Options{Stdout: io.Discard, Stderr: &stderr})
	assert.Equal(t, ExitConfig, code)
	assert.Contains(t, stderr.String(), "config error")
	assert.Empty(t, hub.requests())
}
