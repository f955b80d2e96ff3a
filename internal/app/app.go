package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/deusflow/hftoken/internal/config"
	"github.com/deusflow/hftoken/internal/hub"
	"github.com/deusflow/hftoken/internal/logger"
	"github.com/deusflow/hftoken/internal/ratelimit"
	"github.com/deusflow/hftoken/internal/report"
	"github.com/deusflow/hftoken/internal/storage"
	"github.com/deusflow/hftoken/internal/verify"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// Options are the command line switches layered over the loaded config.
type Options struct {
	ConfigPath string
	JSON       bool
	Strict     bool
	Models     []string
	NoUsage    bool
	NoProbe    bool

	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient *http.Client
}

// Run loads configuration, verifies the credential and prints the report.
// It returns the process exit code.
func Run(ctx context.Context, opts Options) int {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return ExitConfig
	}
	applyOptions(cfg, opts)

	log := logger.Init(logger.Options{Debug: cfg.Debug, Format: cfg.LogFormat, Output: stderr})
	log.Debug("configuration loaded",
		"config", cfg.ConfigPath,
		"hub_url", cfg.HubURL,
		"inference_url", cfg.InferenceURL,
		"models", cfg.Models,
		"probe_model", cfg.ProbeModel,
		"usage", cfg.CheckUsage,
	)

	v := NewVerifier(cfg, log, opts.HTTPClient)

	var (
		history  *storage.History
		previous *storage.HistoryEntry
	)
	if cfg.HistoryPath != "" && cfg.Token != "" {
		history = storage.NewHistory(cfg.HistoryPath, cfg.HistoryTTLDays)
		if err := history.Load(); err != nil {
			log.Warn("history unavailable", "path", cfg.HistoryPath, "error", err)
			history = nil
		} else if last, ok := history.Last(storage.Fingerprint(cfg.Token)); ok {
			previous = &last
		}
	}

	rep, runErr := v.Run(ctx, cfg.Token)

	if history != nil {
		entry := storage.HistoryEntry{
			Fingerprint: storage.Fingerprint(cfg.Token),
			RunID:       rep.RunID,
			CheckedAt:   rep.FinishedAt,
			Status:      string(rep.Status),
		}
		if rep.Identity != nil && rep.Identity.Identity != nil {
			entry.Identity = rep.Identity.Identity.Name
		}
		history.Record(entry)
		if err := history.Save(); err != nil {
			log.Warn("failed to save history", "path", cfg.HistoryPath, "error", err)
		}
	}

	if opts.JSON {
		err = report.JSON(stdout, rep)
	} else {
		err = report.Text(stdout, rep, previous)
	}
	if err != nil {
		log.Error("failed to write report", "error", err)
	}

	log.Debug("run finished", "status", rep.Status, "stats", v.Metrics().Stats())

	if runErr != nil && opts.Strict {
		return ExitFailed
	}
	return ExitOK
}

// NewVerifier wires the Hub client, request budget and verifier from cfg.
func NewVerifier(cfg *config.Config, log *slog.Logger, httpClient *http.Client) *verify.Verifier {
	client := hub.NewClient(cfg.HubURL, cfg.InferenceURL)
	client.LookupTimeout = cfg.LookupTimeout
	client.InferenceTimeout = cfg.InferenceTimeout
	client.Logger = log
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	if cfg.RateLimitPerMinute > 0 {
		client.Budget = ratelimit.PerMinute(cfg.RateLimitPerMinute).WithLogger(log)
	}

	return verify.New(client,
		verify.WithModels(cfg.Models...),
		verify.WithProbe(cfg.ProbeModel, cfg.ProbePrompt, cfg.ProbeMaxTokens),
		verify.WithUsage(cfg.CheckUsage),
		verify.WithLogger(log),
	)
}

func applyOptions(cfg *config.Config, opts Options) {
	if len(opts.Models) > 0 {
		cfg.Models = opts.Models
	}
	if opts.NoUsage {
		cfg.CheckUsage = false
	}
	if opts.NoProbe {
		cfg.ProbeModel = ""
	}
}
