package verify

import (
	"encoding/json"
	"time"
)

// Outcome classifies one check.
type Outcome string

const (
	OutcomeValid                Outcome = "valid"
	OutcomeInvalid              Outcome = "invalid"
	OutcomeTransientUnavailable Outcome = "transient_unavailable"
	OutcomeConnectionError      Outcome = "connection_error"
)

// Check names the kind of remote check a Result belongs to.
type Check string

const (
	CheckIdentity  Check = "identity"
	CheckModel     Check = "model_access"
	CheckInference Check = "inference"
	CheckUsage     Check = "usage"
)

// Identity is what the provider says about the token owner. Every field is
// optional; the provider may leave any of them out.
type Identity struct {
	Name     string   `json:"name,omitempty"`
	Fullname string   `json:"fullname,omitempty"`
	Email    string   `json:"email,omitempty"`
	Type     string   `json:"type,omitempty"`
	Orgs     []string `json:"orgs"`
}

// Result is the outcome of a single check.
type Result struct {
	Check      Check           `json:"check"`
	Target     string          `json:"target,omitempty"`
	Outcome    Outcome         `json:"outcome"`
	StatusCode int             `json:"status_code,omitempty"`
	Identity   *Identity       `json:"identity,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Body       string          `json:"body,omitempty"`
	Message    string          `json:"message,omitempty"`
	Err        error           `json:"-"`
	Duration   time.Duration   `json:"duration_ns"`
}

// OK reports a Valid outcome.
func (r Result) OK() bool {
	return r.Outcome == OutcomeValid
}

// Warning reports an outcome that did not fail the check but needs attention:
// connection errors and transient unavailability.
func (r Result) Warning() bool {
	return r.Outcome == OutcomeConnectionError || r.Outcome == OutcomeTransientUnavailable
}

// Status is the overall outcome of a run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Report collects every result of one run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Credential string    `json:"credential"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`

	Identity  *Result  `json:"identity,omitempty"`
	Models    []Result `json:"models,omitempty"`
	Inference *Result  `json:"inference,omitempty"`
	Usage     *Result  `json:"usage,omitempty"`
}

// Mask shows the first 10 characters of a token.
func Mask(token string) string {
	if token == "" {
		return ""
	}
	r := []rune(token)
	if len(r) <= 10 {
		return string(r[:len(r)/2]) + "..."
	}
	return string(r[:10]) + "..."
}
