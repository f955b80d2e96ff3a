package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/deusflow/hftoken/internal/app"
	"github.com/deusflow/hftoken/internal/config"
)

// modelList collects repeated -model flags; each value may also be comma separated.
type modelList []string

func (m *modelList) String() string { return strings.Join(*m, ",") }

func (m *modelList) Set(v string) error {
	*m = append(*m, config.SplitList(v)...)
	return nil
}

func main() {
	var (
		opts    app.Options
		envFile string
		models  modelList
	)
	flag.StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default $HFTOKEN_CONFIG or hftoken.yaml)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flag.BoolVar(&opts.JSON, "json", false, "print the report as JSON")
	flag.BoolVar(&opts.Strict, "strict", false, "exit 1 when the token check fails")
	flag.BoolVar(&opts.NoUsage, "no-usage", false, "skip the usage lookup")
	flag.BoolVar(&opts.NoProbe, "no-probe", false, "skip the inference probe")
	flag.Var(&models, "model", "model id to check (repeatable, replaces the configured list)")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", envFile, err)
	}
	opts.Models = models

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(ctx, opts)
	stop()
	os.Exit(code)
}
