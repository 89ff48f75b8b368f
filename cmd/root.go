package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/config"
	"github.com/sells-group/sentiment-cli/internal/resilience"
)

var (
	cfg    *config.Config
	logger = zap.NewNop()

	cfgFile    string
	modeFlag   string
	outputFlag string
	runTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "sentiment-cli",
	Short: "Batch sentiment classification pipeline",
	Long: "Reads reviews from an analytical table, classifies each one with a pretrained " +
		"text-classification model and writes the results to a second table. " +
		"With --mode local it classifies the configured sample texts and prints summary statistics.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			logger = fallbackLogger()
			return fail(err)
		}
		cfg = c

		l, err := config.NewLogger(cfg.Log)
		if err != nil {
			logger = fallbackLogger()
			return fail(resilience.Wrap(resilience.KindConfig, err))
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: runPipeline,
}

// fallbackLogger is used when the configured logger cannot be built.
var fallbackLogger = func() *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stdout"}
	l, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", string(config.DefaultMode), "pipeline mode: bigquery or local")
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", outputText, "output format: text or json")
	rootCmd.PersistentFlags().DurationVar(&runTimeout, "timeout", 0, "abort the run after this long (0 disables)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
