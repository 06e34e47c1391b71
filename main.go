// fundpush fetches intraday valuation estimates for a list of funds, ranks
// them into a markdown report and pushes the report through ServerChan.
//
// Usage:
//
//	fundpush [--codes=020670,016942] [--sendkey=<key>] [--title=<title>] [--dry-run]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fundpush/internal/config"
	"fundpush/internal/coordinator"
	"fundpush/internal/fetcher"
	"fundpush/internal/fundgz"
	"fundpush/internal/logging"
	"fundpush/internal/ratelimit"
	"fundpush/internal/report"
	"fundpush/internal/serverchan"
)

// version is set at build time via -ldflags.
var version = "dev"

// Process exit codes
const (
	exitOK             = 0
	exitConfigError    = 1
	exitDeliveryFailed = 2
)

func main() {
	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the root command with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := exitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitConfigError
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fundpush",
		Short:         "Push intraday fund valuation estimates through ServerChan",
		Long:          "fundpush fetches valuation estimates for the configured funds from fundgz,\nranks them by estimated change and pushes the report through ServerChan.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			level, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logging.Init(level, cfg.LogFormat, cmd.ErrOrStderr())

			*code = run(cmd.Context(), cfg, cmd.OutOrStdout())
			return nil
		},
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// run executes one fetch, format and push cycle and returns the exit code.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer) int {
	logger := logging.New("fundpush")

	policy := fetcher.DefaultRetryPolicy()
	policy.MaxRetries = cfg.RetryCount
	policy.BaseDelay = cfg.RetryBaseDelay

	client := fetcher.NewHTTPClient(policy, cfg.RequestTimeout)
	defer client.Close()

	limiter := ratelimit.New(map[ratelimit.API]float64{
		ratelimit.APIFundgz: cfg.QuoteRateLimit,
	})

	quotes := fundgz.NewQuoteFetcher(client, cfg.FundgzBaseURL, fundgz.WithLimiter(limiter))
	coord := coordinator.New(quotes, coordinator.WithConcurrency(cfg.Concurrency))

	results := coord.FetchAll(ctx, cfg.FundCodes)

	failed := 0
	for _, r := range results {
		if r.OK() {
			continue
		}
		failed++
		logger.Warn("fund fetch failed",
			"code", r.Code,
			"reason", r.Err.Reason,
			"detail", r.Err.Detail)
	}
	logger.Info("fetch completed", "ok", len(results)-failed, "failed", failed)

	rep := report.Formatter{ShowTime: cfg.ShowTime}.Format(results)
	if rep.Empty() {
		logger.Info("nothing to send")
		return exitOK
	}

	if cfg.DryRun {
		fmt.Fprintln(stdout, rep.String())
		return exitOK
	}

	notifier := serverchan.New(client,
		serverchan.WithBaseURL(cfg.ServerChanBaseURL),
		serverchan.WithPushURL(cfg.ServerChanPushURL),
		serverchan.WithLimiter(limiter))

	d := notifier.Notify(ctx, cfg.SendKey, cfg.Title, rep.String(), cfg.PushOptions)
	if !d.Succeeded {
		logger.Error("delivery failed",
			"kind", d.Err.Kind,
			"status_code", d.StatusCode,
			"error", d.Err.Error())
		return exitDeliveryFailed
	}

	logger.Info("report delivered", "funds", len(results), "message", d.Message)
	return exitOK
}
