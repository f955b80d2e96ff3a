// Package report renders a verification run for the console.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/deusflow/hftoken/internal/storage"
	"github.com/deusflow/hftoken/internal/verify"
)

const rule = "============================================================"

// Text writes the human readable report. previous is the last recorded run
// for the same token, if any.
func Text(w io.Writer, r *verify.Report, previous *storage.HistoryEntry) error {
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString("Hugging Face Token Tester\n")
	b.WriteString(rule + "\n")

	if r.Credential == "" {
		b.WriteString("\n[FAIL] No token found. Set HUGGINGFACE_TOKEN in .env or the environment.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Token: %s\n", r.Credential)
	if previous != nil {
		fmt.Fprintf(&b, "Last checked: %s (%s)\n", previous.CheckedAt.Format("2006-01-02 15:04:05"), previous.Status)
	}

	b.WriteString("\n1. Token validity\n")
	writeIdentity(&b, r.Identity)

	if r.Status == verify.StatusFailed {
		b.WriteString("\n[FAIL] The token has problems, check your settings.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n2. Model access\n")
	if len(r.Models) == 0 {
		b.WriteString("   (no models configured)\n")
	}
	for _, m := range r.Models {
		writeModel(&b, m)
	}

	b.WriteString("\n3. Inference API\n")
	writeInference(&b, r.Inference)

	b.WriteString("\n4. Usage limits\n")
	writeUsage(&b, r.Usage)

	b.WriteString("\nAll checks completed.\n")
	b.WriteString("\nNotes:\n")
	b.WriteString("1. Keep the token in .env\n")
	b.WriteString("2. Free tier limit: 30 requests/minute\n")
	b.WriteString("3. Some models need to load on their first request\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes the report as indented JSON.
func JSON(w io.Writer, r *verify.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

func writeIdentity(b *strings.Builder, res *verify.Result) {
	if res == nil {
		return
	}
	switch res.Outcome {
	case verify.OutcomeValid:
		b.WriteString("   [OK]   Token is valid\n")
		id := res.Identity
		if id == nil {
			id = &verify.Identity{}
		}
		fmt.Fprintf(b, "   User:  %s\n", orUnknown(id.Name))
		fmt.Fprintf(b, "   Email: %s\n", orUnknown(id.Email))
		fmt.Fprintf(b, "   Orgs:  [%s]\n", strings.Join(id.Orgs, ", "))
	case verify.OutcomeInvalid:
		fmt.Fprintf(b, "   [FAIL] Token is invalid: %d\n", res.StatusCode)
	default:
		fmt.Fprintf(b, "   [FAIL] Connection error: %s\n", res.Message)
	}
}

func writeModel(b *strings.Builder, res verify.Result) {
	switch res.Outcome {
	case verify.OutcomeValid:
		fmt.Fprintf(b, "   [OK]   Accessible: %s\n", res.Target)
	case verify.OutcomeInvalid:
		fmt.Fprintf(b, "   [FAIL] Not accessible: %s (%d)\n", res.Target, res.StatusCode)
	default:
		fmt.Fprintf(b, "   [WARN] Error for model %s: %s\n", res.Target, res.Message)
	}
}

func writeInference(b *strings.Builder, res *verify.Result) {
	if res == nil {
		b.WriteString("   (skipped)\n")
		return
	}
	switch res.Outcome {
	case verify.OutcomeValid:
		fmt.Fprintf(b, "   [OK]   Inference works: %s\n", compact(res.Payload, res.Body))
	case verify.OutcomeTransientUnavailable:
		fmt.Fprintf(b, "   [WARN] %s (%d)\n", res.Message, res.StatusCode)
	case verify.OutcomeInvalid:
		fmt.Fprintf(b, "   [FAIL] Inference failed: %d\n", res.StatusCode)
		fmt.Fprintf(b, "   Response: %s\n", res.Body)
	default:
		fmt.Fprintf(b, "   [WARN] Inference error: %s\n", res.Message)
	}
}

func writeUsage(b *strings.Builder, res *verify.Result) {
	if res == nil {
		b.WriteString("   (skipped)\n")
		return
	}
	switch res.Outcome {
	case verify.OutcomeValid:
		b.WriteString("   [OK]   Usage information:\n")
		b.WriteString(indent(pretty(res.Payload, res.Body), "   "))
		b.WriteString("\n")
	case verify.OutcomeInvalid:
		fmt.Fprintf(b, "   [FAIL] Usage information unavailable (%d)\n", res.StatusCode)
	default:
		fmt.Fprintf(b, "   [WARN] Error: %s\n", res.Message)
	}
}

func pretty(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func compact(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
