// Command enricher fills in public information about companies listed in a
// spreadsheet using Gemini with Google Search grounding.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shpitdev/company-enricher/internal/app"
	"github.com/shpitdev/company-enricher/internal/config"
	"github.com/shpitdev/company-enricher/pkg/pipeline/redact"
)

// usageError marks failures caused by flags, configuration or input rather
// than by the run itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErr(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Enrich a spreadsheet of company names with public data",
	Long: `enricher reads company names from the first column of an .xlsx or .csv
file, asks Gemini (with Google Search grounding) for each company's website,
description, revenue, laboratories and contacts, and writes the results to a
new spreadsheet. Companies are processed one at a time; a failure for one
company is recorded in its row and does not stop the run.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("store", "", "sqlite run journal path, empty disables the journal (env: STORE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr(err)
	})
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "enricher: %s\n", redact.Secrets(err.Error()))

	var ue *usageError
	if errors.As(err, &ue) || app.IsUsageError(err) {
		os.Exit(2)
	}
	os.Exit(1)
}

// loadConfig resolves defaults, the config file and the environment, then
// applies persistent flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, usageErr(err)
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Path, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, usageErr(fmt.Errorf("invalid log level %q: %w", level, err))
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	return zc.Build()
}
