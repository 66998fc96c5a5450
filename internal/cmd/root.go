package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/strrl/meetscope/internal/config"
	"github.com/strrl/meetscope/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "meetscope",
	Short: "Analyze meeting recordings for behavioral indicators",
	Long: `meetscope uploads a meeting recording and optional voice samples of the
participants to Gemini, asks for a structured analysis and renders the
summary, transcript and behavioral indicators with seekable timestamps.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = false

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.meetscope/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(logging.Config{
		Level:  logging.Level(cfg.Log.Level),
		Format: logging.Format(cfg.Log.Format),
	})
}
