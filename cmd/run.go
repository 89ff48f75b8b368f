package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/classifier"
	"github.com/sells-group/sentiment-cli/internal/config"
	"github.com/sells-group/sentiment-cli/internal/pipeline"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/pkg/inference"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one batch (same as invoking sentiment-cli with no subcommand)",
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	mode, ok := config.ParseMode(modeFlag)
	if !ok {
		logger.Warn("unrecognized mode, using default",
			zap.String("mode", modeFlag),
			zap.String("default", string(mode)),
		)
	}
	format, err := parseOutput(outputFlag)
	if err != nil {
		return fail(err)
	}
	if err := cfg.Validate(mode); err != nil {
		return fail(err)
	}

	ids, err := pipeline.NewIDGenerator(cfg.IDs.Strategy, time.Now())
	if err != nil {
		return fail(resilience.Wrap(resilience.KindConfig, err))
	}
	adapter := newAdapter()
	out := cmd.OutOrStdout()

	if mode == config.ModeLocal {
		p := pipeline.New(nil, adapter, ids, logger)
		res, err := p.RunLocal(ctx, cfg.Pipeline())
		if err != nil {
			return fail(err)
		}
		return printLocal(out, format, res)
	}

	st, err := initStore(ctx)
	if err != nil {
		return fail(err)
	}
	defer st.Close() //nolint:errcheck

	p := pipeline.New(st, adapter, ids, logger)
	res, err := p.Run(ctx, cfg.Pipeline())
	if err != nil {
		return fail(err)
	}
	return printRun(out, format, res)
}

// newAdapter builds the classifier on top of the configured inference backend.
func newAdapter() *classifier.Adapter {
	client := inference.NewClient(cfg.Inference.APIKey,
		inference.WithBaseURL(cfg.Inference.BaseURL),
		inference.WithTimeout(time.Duration(cfg.Inference.TimeoutSecs)*time.Second),
		inference.WithRetry(resilience.FromRetryConfig(cfg.Inference.MaxAttempts, 0, 0)),
		inference.WithRateLimit(cfg.Inference.RequestsPerSecond),
		inference.WithLogger(logger),
	)
	return classifier.NewAdapter(classifier.NewRemoteLoader(client), logger)
}

// fail logs err with its failure kind and returns it so cobra exits non-zero.
func fail(err error) error {
	fields := []zap.Field{zap.Error(err)}
	if kind, ok := resilience.KindOf(err); ok {
		fields = append(fields, zap.String("kind", string(kind)))
	}
	logger.Error("run failed", fields...)
	return err
}
