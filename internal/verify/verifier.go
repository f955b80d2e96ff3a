// Package verify runs the credential verification workflow: an identity
// lookup that gates everything else, then independent model-access checks,
// an inference probe and a usage lookup.
package verify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/deusflow/hftoken/internal/hub"
	"github.com/deusflow/hftoken/internal/metrics"
)

const maxDiagnosticBody = 2048

// API is the subset of the Hub client the verifier needs.
type API interface {
	WhoAmI(ctx context.Context, token string) (*hub.Response, error)
	ModelInfo(ctx context.Context, token, modelID string) (*hub.Response, error)
	Usage(ctx context.Context, token string) (*hub.Response, error)
	Infer(ctx context.Context, token, modelID string, req hub.InferenceRequest) (*hub.Response, error)
}

// Probe describes the single inference call of a run.
type Probe struct {
	Model        string
	Prompt       string
	MaxNewTokens int
}

type Verifier struct {
	api     API
	models  []string
	probe   Probe
	usage   bool
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Verifier)

// WithModels sets the model ids checked for access, in order.
func WithModels(models ...string) Option {
	return func(v *Verifier) {
		v.models = append([]string(nil), models...)
	}
}

// WithProbe configures the inference probe. An empty model disables it.
func WithProbe(model, prompt string, maxNewTokens int) Option {
	return func(v *Verifier) {
		v.probe = Probe{Model: model, Prompt: prompt, MaxNewTokens: maxNewTokens}
	}
}

// WithUsage toggles the usage lookup.
func WithUsage(enabled bool) Option {
	return func(v *Verifier) {
		v.usage = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// New creates a verifier. By default no models are checked, no probe is
// sent and the usage lookup is enabled.
func New(api API, opts ...Option) *Verifier {
	v := &Verifier{
		api:     api,
		usage:   true,
		logger:  slog.Default(),
		metrics: metrics.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Metrics returns the counters fed by this verifier.
func (v *Verifier) Metrics() *metrics.Metrics {
	return v.metrics
}

// Run executes the whole workflow. The returned error is non-nil only when
// the run failed: a missing credential or a failed identity check. All other
// failures are recorded on their Result and the run continues.
func (v *Verifier) Run(ctx context.Context, token string) (*Report, error) {
	started := v.now()
	v.metrics.Start(started)

	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		Credential: Mask(token),
		Status:     StatusFailed,
	}
	log := v.logger.With("run_id", report.RunID)

	finish := func(err error) (*Report, error) {
		report.FinishedAt = v.now()
		v.metrics.Finish(report.FinishedAt)
		if err != nil {
			report.Error = err.Error()
			v.metrics.SetError(err.Error())
			return report, err
		}
		report.Status = StatusPassed
		return report, nil
	}

	if token == "" {
		log.Error("no credential configured")
		return finish(ErrMissingCredential)
	}

	log.Info("verifying credential", "token", report.Credential)

	identity := v.VerifyIdentity(ctx, token)
	report.Identity = &identity
	if !identity.OK() {
		log.Error("identity check failed, skipping remaining checks",
			"outcome", identity.Outcome, "status", identity.StatusCode, "error", identity.Err)
		return finish(identity.Err)
	}

	report.Models = v.CheckModels(ctx, token, v.models)

	if v.probe.Model != "" {
		inference := v.RunInferenceProbe(ctx, token, v.probe.Model, v.probe.Prompt, v.probe.MaxNewTokens)
		report.Inference = &inference
	} else {
		log.Debug("inference probe disabled")
	}

	if v.usage {
		usage := v.FetchUsage(ctx, token)
		report.Usage = &usage
	}

	return finish(nil)
}

// VerifyIdentity looks up the token owner. The result is always exactly one
// of Valid, Invalid or ConnectionError.
func (v *Verifier) VerifyIdentity(ctx context.Context, token string) Result {
	res := Result{Check: CheckIdentity}

	resp, err := v.api.WhoAmI(ctx, token)
	switch {
	case err != nil:
		res.Outcome = OutcomeConnectionError
		res.Message = err.Error()
		res.Err = err
	case resp.StatusCode == http.StatusOK:
		res.Outcome = OutcomeValid
		res.StatusCode = resp.StatusCode
		res.Identity = parseIdentity(resp.Body)
		v.logger.Info("token valid",
			"name", res.Identity.Name, "email", res.Identity.Email, "orgs", res.Identity.Orgs)
	default:
		res.Outcome = OutcomeInvalid
		res.StatusCode = resp.StatusCode
		res.Body = truncate(resp.Body)
		res.Err = InvalidCredential(resp.StatusCode)
	}

	return v.record(res, resp)
}

// CheckModels checks every model id in order. A failure for one id never
// stops the others.
func (v *Verifier) CheckModels(ctx context.Context, token string, models []string) []Result {
	results := make([]Result, 0, len(models))
	for _, id := range models {
		results = append(results, v.CheckModelAccess(ctx, token, id))
	}
	return results
}

// CheckModelAccess fetches the metadata of one model.
func (v *Verifier) CheckModelAccess(ctx context.Context, token, modelID string) Result {
	res := Result{Check: CheckModel, Target: modelID}

	resp, err := v.api.ModelInfo(ctx, token, modelID)
	switch {
	case err != nil:
		res.Outcome = OutcomeConnectionError
		res.Message = err.Error()
		res.Err = err
		v.logger.Warn("model check failed", "model", modelID, "error", err)
	case resp.StatusCode == http.StatusOK:
		res.Outcome = OutcomeValid
		res.StatusCode = resp.StatusCode
		v.logger.Info("model accessible", "model", modelID)
	default:
		res.Outcome = OutcomeInvalid
		res.StatusCode = resp.StatusCode
		res.Body = truncate(resp.Body)
		v.logger.Warn("model not accessible", "model", modelID, "status", resp.StatusCode)
	}

	return v.record(res, resp)
}

// RunInferenceProbe sends one inference request. 503 means the model is
// still loading and 429 means the provider throttled us; both are transient
// and are not retried.
func (v *Verifier) RunInferenceProbe(ctx context.Context, token, modelID, prompt string, maxNewTokens int) Result {
	res := Result{Check: CheckInference, Target: modelID}

	resp, err := v.api.Infer(ctx, token, modelID, hub.InferenceRequest{
		Inputs:     prompt,
		Parameters: hub.InferenceParameters{MaxNewTokens: maxNewTokens},
	})
	switch {
	case err != nil:
		res.Outcome = OutcomeConnectionError
		res.Message = err.Error()
		res.Err = err
		v.logger.Warn("inference probe failed", "model", modelID, "error", err)
	case resp.StatusCode == http.StatusOK:
		res.Outcome = OutcomeValid
		res.StatusCode = resp.StatusCode
		res.Payload, res.Body = payload(resp.Body)
		v.logger.Info("inference works", "model", modelID)
	case resp.StatusCode == http.StatusServiceUnavailable:
		res.Outcome = OutcomeTransientUnavailable
		res.StatusCode = resp.StatusCode
		res.Message = "model is loading, try again later"
		res.Err = TransientUnavailable(resp.StatusCode, TextCodeModelLoading, res.Message)
		v.logger.Warn("model is loading", "model", modelID)
	case resp.StatusCode == http.StatusTooManyRequests:
		res.Outcome = OutcomeTransientUnavailable
		res.StatusCode = resp.StatusCode
		res.Message = "rate limited by provider, try again later"
		res.Err = TransientUnavailable(resp.StatusCode, hub.TextCodeRateLimited, res.Message)
		v.logger.Warn("inference rate limited", "model", modelID)
	default:
		res.Outcome = OutcomeInvalid
		res.StatusCode = resp.StatusCode
		res.Body = truncate(resp.Body)
		res.Err = hub.UnexpectedStatus(resp.StatusCode, res.Body)
		v.logger.Warn("inference failed", "model", modelID, "status", resp.StatusCode, "body", res.Body)
	}

	return v.record(res, resp)
}

// FetchUsage looks up billing and usage metadata.
func (v *Verifier) FetchUsage(ctx context.Context, token string) Result {
	res := Result{Check: CheckUsage}

	resp, err := v.api.Usage(ctx, token)
	switch {
	case err != nil:
		res.Outcome = OutcomeConnectionError
		res.Message = err.Error()
		res.Err = err
		v.logger.Warn("usage lookup failed", "error", err)
	case resp.StatusCode == http.StatusOK:
		res.Outcome = OutcomeValid
		res.StatusCode = resp.StatusCode
		res.Payload, res.Body = payload(resp.Body)
	default:
		res.Outcome = OutcomeInvalid
		res.StatusCode = resp.StatusCode
		res.Body = truncate(resp.Body)
		v.logger.Warn("usage unavailable", "status", resp.StatusCode)
	}

	return v.record(res, resp)
}

func (v *Verifier) record(res Result, resp *hub.Response) Result {
	if resp != nil {
		res.Duration = resp.Duration
	}
	v.metrics.Record(string(res.Outcome), res.Duration)
	return res
}

// payload keeps JSON bodies as raw JSON and anything else as text.
func payload(body []byte) (json.RawMessage, string) {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body), ""
	}
	return nil, truncate(body)
}

func truncate(body []byte) string {
	if len(body) <= maxDiagnosticBody {
		return string(body)
	}
	cut := maxDiagnosticBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
