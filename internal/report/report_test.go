package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/hftoken/internal/storage"
	"github.com/deusflow/hftoken/internal/verify"
)

func passedReport() *verify.Report {
	return &verify.Report{
		RunID:      "run-1",
		Credential: "hf_abcdefg...",
		Status:     verify.StatusPassed,
		Identity: &verify.Result{
			Check:    verify.CheckIdentity,
			Outcome:  verify.OutcomeValid,
			Identity: &verify.Identity{Name: "alice", Orgs: []string{"acme", "beta"}},
		},
		Models: []verify.Result{
			{Check: verify.CheckModel, Target: "org/ok", Outcome: verify.OutcomeValid, StatusCode: 200},
			{Check: verify.CheckModel, Target: "org/gated", Outcome: verify.OutcomeInvalid, StatusCode: 403},
			{Check: verify.CheckModel, Target: "org/slow", Outcome: verify.OutcomeConnectionError, Message: "timeout"},
		},
		Inference: &verify.Result{
			Check:      verify.CheckInference,
			Target:     "org/ok",
			Outcome:    verify.OutcomeTransientUnavailable,
			StatusCode: 503,
			Message:    "model is loading, try again later",
		},
		Usage: &verify.Result{
			Check:   verify.CheckUsage,
			Outcome: verify.OutcomeValid,
			Payload: json.RawMessage(`{"requests":3}`),
		},
	}
}

func TestText_PassedRun(t *testing.T) {
	var buf bytes.Buffer
	prev := &storage.HistoryEntry{CheckedAt: time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC), Status: "passed"}

	require.NoError(t, Text(&buf, passedReport(), prev))
	out := buf.String()

	for _, want := range []string{
		"Token: hf_abcdefg...",
		"Last checked: 2026-10-15 08:30:00 (passed)",
		"[OK]   Token is valid",
		"User:  alice",
		"Email: unknown",
		"Orgs:  [acme, beta]",
		"[OK]   Accessible: org/ok",
		"[FAIL] Not accessible: org/gated (403)",
		"[WARN] Error for model org/slow: timeout",
		"[WARN] model is loading, try again later (503)",
		`"requests": 3`,
		"30 requests/minute",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "token has problems")
}

func TestText_FailedRunStopsAfterIdentity(t *testing.T) {
	rep := &verify.Report{
		Credential: "hf_abcdefg...",
		Status:     verify.StatusFailed,
		Identity:   &verify.Result{Check: verify.CheckIdentity, Outcome: verify.OutcomeInvalid, StatusCode: 401},
	}
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, rep, nil))
	out := buf.String()

	assert.Contains(t, out, "[FAIL] Token is invalid: 401")
	assert.Contains(t, out, "token has problems")
	assert.NotContains(t, out, "Model access")
	assert.NotContains(t, out, "Usage limits")
}

func TestText_MissingCredential(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, &verify.Report{Status: verify.StatusFailed}, nil))
	assert.Contains(t, buf.String(), "No token found")
	assert.NotContains(t, buf.String(), "Token validity")
}

func TestText_InferenceFailureShowsBody(t *testing.T) {
	rep := passedReport()
	rep.Inference = &verify.Result{Outcome: verify.OutcomeInvalid, StatusCode: 400, Body: `{"error":"bad"}`}
	rep.Usage = nil

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, rep, nil))
	out := buf.String()

	assert.Contains(t, out, "[FAIL] Inference failed: 400")
	assert.Contains(t, out, `Response: {"error":"bad"}`)
	assert.True(t, strings.Contains(out, "4. Usage limits\n   (skipped)"))
}

func TestJSON(t *testing.T) {
	rep := passedReport()
	rep.Models[2].Err = errors.New("not serialised")

	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, rep))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "passed", decoded["status"])
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Len(t, decoded["models"], 3)
	assert.NotContains(t, buf.String(), "not serialised")
}
