// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/client"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	serverFlag := &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "ragline server URL",
		Value:   "http://127.0.0.1:8000",
		EnvVars: []string{"RAGLINE_SERVER"},
	}
	validatePDFFlag := &cli.BoolFlag{
		Name:  "validate-pdf",
		Usage: "Check PDF structure before extraction (overrides RAGLINE_VALIDATE_PDF)",
	}

	return &cli.App{
		Name:      "ragline",
		Usage:     "Ingest documents into a vector store and answer questions from them",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load settings from these .env files (default: ./.env if present)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP ingestion and chat server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides RAGLINE_ADDR)"},
					&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Usage: "BadgerDB directory (overrides RAGLINE_DATA_DIR)"},
					&cli.StringFlag{Name: "upload-dir", Usage: "Upload directory (overrides RAGLINE_UPLOAD_DIR)"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent ingestion jobs (overrides RAGLINE_WORKERS)"},
					validatePDFFlag,
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a document synchronously, printing progress",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Usage: "BadgerDB directory (overrides RAGLINE_DATA_DIR)"},
					&cli.StringFlag{Name: "job-id", Usage: "Job id used in chunk ids (default: random)"},
					&cli.IntFlag{Name: "batch-size", Usage: "Chunks per storage write (overrides RAGLINE_BATCH_SIZE)"},
					validatePDFFlag,
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from ingested documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Usage: "BadgerDB directory (overrides RAGLINE_DATA_DIR)"},
					&cli.IntFlag{Name: "top-k", Usage: "Passages to retrieve (overrides RAGLINE_TOP_K)"},
					&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "Ask a running server instead of the local store"},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every stored chunk vector with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Usage: "BadgerDB directory (overrides RAGLINE_DATA_DIR)"},
					&cli.IntFlag{Name: "batch-size", Usage: "Chunks per embedding call (overrides RAGLINE_BATCH_SIZE)"},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N chunks", Value: 100},
					&cli.IntFlag{Name: "max-retries", Usage: "Maximum embedding attempts per batch (overrides RAGLINE_MAX_RETRIES)"},
					&cli.DurationFlag{Name: "retry-delay", Usage: "Base delay for exponential backoff (overrides RAGLINE_RETRY_DELAY)"},
				},
			},
			{
				Name:      "submit",
				Usage:     "Upload a document to a server and wait for it to be indexed",
				ArgsUsage: "<file>",
				Action:    submitCommand,
				Flags: []cli.Flag{
					serverFlag,
					&cli.DurationFlag{Name: "interval", Usage: "Status poll interval", Value: client.DefaultPollInterval},
					&cli.BoolFlag{Name: "no-wait", Usage: "Return as soon as the job is queued"},
				},
			},
		},
	}
}

// loadConfig reads .env files and the environment, then applies any
// explicitly set command flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	// Load applies .env files to the process environment; validation runs
	// below, after flags are applied.
	if _, err := config.Load(c.StringSlice("env-file")...); err != nil && !errors.Is(err, config.ErrInvalidConfig) {
		return nil, err
	}
	cfg := config.FromEnv()

	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("db") {
		cfg.DataDir = c.String("db")
	}
	if c.IsSet("upload-dir") {
		cfg.UploadDir = c.String("upload-dir")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.RetryDelay = c.Duration("retry-delay")
	}
	if c.IsSet("top-k") {
		cfg.TopK = c.Int("top-k")
	}
	if c.IsSet("validate-pdf") {
		cfg.ValidatePDF = c.Bool("validate-pdf")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := ragline.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	svc, err := engine.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(svc.Server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srvErr := svc.Server.Shutdown(shutdownCtx)
		runErr := svc.Runner.Shutdown(shutdownCtx)
		return errors.Join(srvErr, runErr)
	})

	slog.Info("ragline serving", "addr", cfg.Addr, "store", cfg.Store, "uploads", cfg.UploadStore)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("ragline stopped")
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	engine, err := ragline.Open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	proc, err := engine.NewProcessor()
	if err != nil {
		return err
	}

	req := ingestion.Request{JobID: c.String("job-id"), Path: c.Args().First()}
	_, err = proc.Run(c.Context, req, ingestion.NewConsoleObserver(c.App.Writer))
	return err
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	if url := c.String("server"); url != "" {
		cl, err := client.New(url)
		if err != nil {
			return err
		}
		answer, err := cl.Chat(c.Context, question)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, answer)
		return nil
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := ragline.Open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return err
	}
	answer, err := searcher.Answer(c.Context, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, answer)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := ragline.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	re, err := engine.NewReembedder(c.App.Writer, c.Int("report-interval"))
	if err != nil {
		return err
	}
	_, err = re.Run(ctx)
	return err
}

func submitCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	cl, err := client.New(c.String("server"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := cl.SubmitFile(ctx, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Job started: %s\n", res.JobID)
	if c.Bool("no-wait") {
		return nil
	}

	last := ""
	state, err := cl.Wait(ctx, res.JobID, c.Duration("interval"), func(s core.JobState) {
		if line := statusLine(s); line != last {
			fmt.Fprintln(c.App.Writer, line)
			last = line
		}
	})
	if err != nil {
		return err
	}
	if state.Status == core.JobFailed {
		return fmt.Errorf("job %s failed: %s", state.JobID, state.Error)
	}
	fmt.Fprintln(c.App.Writer, "Indexing complete.")
	return nil
}

// statusLine renders a job as "Status: PROCESSING | <latest log line>".
func statusLine(s core.JobState) string {
	latest := "Starting..."
	if n := len(s.Log); n > 0 {
		latest = s.Log[n-1]
	}
	return fmt.Sprintf("Status: %s | %s", strings.ToUpper(string(s.Status)), latest)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
