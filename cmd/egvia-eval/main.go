package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egvia-interpret-server/internal/eval"
)

// Exit codes: 0 all checks pass, 1 one or more deterministic checks fail,
// 2 dataset/config error or backend unreachable.
const (
	exitOK          = 0
	exitCheckFailed = 1
	exitConfigError = 2
)

// errChecksFailed distinguishes check failures from config/infra errors
var errChecksFailed = errors.New("one or more deterministic checks failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errChecksFailed) {
			os.Exit(exitCheckFailed)
		}
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(exitConfigError)
	}
	os.Exit(exitOK)
}

func newRootCmd() *cobra.Command {
	var (
		baseURL  string
		dataPath string
		timeout  time.Duration
		retries  int
	)

	cmd := &cobra.Command{
		Use:           "egvia-eval",
		Short:         "Run deterministic EG-VIA contract checks against a running backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), baseURL, dataPath, timeout, retries)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8000", "base URL for the backend API")
	cmd.Flags().StringVar(&dataPath, "data", "", "path to the JSONL evaluation dataset (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().IntVar(&retries, "retries", 0, "retries after request errors")
	cobra.CheckErr(cmd.MarkFlagRequired("data"))
	return cmd
}

func runEval(ctx context.Context, baseURL, dataPath string, timeout time.Duration, retries int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	cases, err := eval.LoadCases(dataPath)
	if err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}

	fmt.Printf("Running %d eval case(s) against %s\n", len(cases), baseURL)

	runner := eval.NewRunner(baseURL, timeout, retries, logger)
	summary, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}

	fmt.Printf("Summary: total=%d passed=%d failed=%d\n", summary.Total, summary.Passed, summary.Failed)
	if summary.Failed > 0 {
		return errChecksFailed
	}
	return nil
}
