package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/company-enricher/internal/app"
	"github.com/shpitdev/company-enricher/internal/config"
	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/enrich/gemini"
	"github.com/shpitdev/company-enricher/internal/pipeline"
	"github.com/shpitdev/company-enricher/internal/store"
	"github.com/shpitdev/company-enricher/pkg/pipeline/schema"
)

var runCmd = &cobra.Command{
	Use:   "run --input FILE",
	Short: "Enrich every company in a spreadsheet",
	Long: `Run reads company names from the first column of the first sheet (.xlsx)
or the first column (.csv) of --input and writes one enriched row per company
to --output (default: enriched_<input name>.xlsx next to the input).

Environment:
  GEMINI_API_KEY          Gemini API key (required unless --stub)
  GEMINI_MODEL            Gemini model name (default gemini-2.5-pro)
  GEMINI_BASE_URL         Optional base URL override (proxies, mock server)
  GEMINI_THINKING_BUDGET  Thinking token budget (default 32768)
  WORKERS, MAX_RETRIES, REQUEST_TIMEOUT, RATE_LIMIT_RPS
  OUTPUT_LOCALE, INCLUDE_SOURCES, SKIP_HEADER`,
	Example: `  enricher run --input companies.xlsx
  enricher run --input companies.csv --output out.csv --locale ru --include-sources`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func init() {
	f := runCmd.Flags()
	f.String("input", "", "input spreadsheet (.xlsx or .csv)")
	f.String("output", "", "output spreadsheet (.xlsx or .csv)")
	f.Bool("stub", false, "use the offline stub enricher instead of Gemini")
	f.String("api-key", "", "Gemini API key (env: GEMINI_API_KEY)")
	f.String("model", "", "Gemini model name (env: GEMINI_MODEL)")
	f.String("base-url", "", "Gemini API base URL override (env: GEMINI_BASE_URL)")
	f.Int("thinking-budget", 0, "Gemini thinking token budget (env: GEMINI_THINKING_BUDGET)")
	f.Int("workers", 1, "companies processed at once; 1 keeps strict input order (env: WORKERS)")
	f.Int("max-retries", 0, "extra attempts for transient failures (env: MAX_RETRIES)")
	f.Duration("request-timeout", 0, "per-company request timeout, 0 disables (env: REQUEST_TIMEOUT)")
	f.Float64("rate-limit-rps", 0, "global request rate limit, 0 disables (env: RATE_LIMIT_RPS)")
	f.String("locale", "", "header and placeholder language: en or ru (env: OUTPUT_LOCALE)")
	f.Bool("include-sources", false, "append a sources column with search citations (env: INCLUDE_SOURCES)")
	f.Bool("skip-header", false, "treat the first input row as a header (env: SKIP_HEADER)")
	_ = runCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides cfg with the run flags that were set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("api-key") {
		cfg.Gemini.APIKey, _ = f.GetString("api-key")
	}
	if f.Changed("model") {
		cfg.Gemini.Model, _ = f.GetString("model")
	}
	if f.Changed("base-url") {
		cfg.Gemini.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("thinking-budget") {
		cfg.Gemini.ThinkingBudget, _ = f.GetInt("thinking-budget")
	}
	if f.Changed("workers") {
		cfg.Pipeline.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("max-retries") {
		cfg.Pipeline.MaxRetries, _ = f.GetInt("max-retries")
	}
	if f.Changed("request-timeout") {
		cfg.Pipeline.RequestTimeout, _ = f.GetDuration("request-timeout")
	}
	if f.Changed("rate-limit-rps") {
		cfg.Pipeline.RateLimitRPS, _ = f.GetFloat64("rate-limit-rps")
	}
	if f.Changed("locale") {
		cfg.Output.Locale, _ = f.GetString("locale")
	}
	if f.Changed("include-sources") {
		cfg.Output.IncludeSources, _ = f.GetBool("include-sources")
	}
	if f.Changed("skip-header") {
		cfg.Pipeline.SkipHeader, _ = f.GetBool("skip-header")
	}
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return usageErr(err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enricher, model, err := buildEnricher(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	var journal *store.Journal
	if cfg.Store.Path != "" {
		journal, err = store.Open(ctx, cfg.Store.Path)
		if err != nil {
			logger.Warn("run journal unavailable", zap.String("path", cfg.Store.Path), zap.Error(err))
			journal = nil
		} else {
			defer func() {
				_ = journal.Close()
			}()
		}
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	summary, err := app.RunLocal(ctx, app.LocalOptions{
		InputPath:      input,
		OutputPath:     output,
		SkipHeader:     cfg.Pipeline.SkipHeader,
		Locale:         schema.NormalizeLocale(cfg.Output.Locale),
		IncludeSources: cfg.Output.IncludeSources,
		Model:          model,
		Pipeline: pipeline.Options{
			Workers:        cfg.Pipeline.Workers,
			MaxRetries:     cfg.Pipeline.MaxRetries,
			RequestTimeout: cfg.Pipeline.RequestTimeout,
			RateLimitRPS:   cfg.Pipeline.RateLimitRPS,
		},
	}, enricher, logger, journal)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d enriched, %d failed (run %s)\n",
		summary.Output, summary.Done, summary.Failed, summary.RunID)
	return nil
}

func buildEnricher(ctx context.Context, cmd *cobra.Command, cfg config.Config) (enrich.Enricher, string, error) {
	if useStub, _ := cmd.Flags().GetBool("stub"); useStub {
		return enrich.Stub{}, "stub", nil
	}
	e, err := gemini.New(ctx, gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		BaseURL:        cfg.Gemini.BaseURL,
		ThinkingBudget: cfg.Gemini.ThinkingBudget,
	})
	if err != nil {
		return nil, "", err
	}
	return e, e.Model(), nil
}
