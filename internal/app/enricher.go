package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/pipeline"
	"github.com/shpitdev/company-enricher/internal/store"
	localio "github.com/shpitdev/company-enricher/pkg/pipeline/io/local"
	"github.com/shpitdev/company-enricher/pkg/pipeline/schema"
)

// LocalOptions describes one run over a local spreadsheet.
type LocalOptions struct {
	InputPath  string
	OutputPath string // defaults to DefaultOutputPath(InputPath)
	SkipHeader bool

	Locale         schema.Locale
	IncludeSources bool

	// Model is recorded in the journal and logs only.
	Model    string
	Pipeline pipeline.Options
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID  string
	Output string
	Total  int
	Done   int
	Failed int
}

// DefaultOutputPath returns enriched_<base>.xlsx next to the input file.
func DefaultOutputPath(inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(filepath.Dir(inputPath), "enriched_"+base+".xlsx")
}

// RunLocal imports company names from a local sheet, enriches them one by one
// and exports the result.
//
// Per-company failures end up in the output and do not fail the run.
// journal may be nil. When ctx is cancelled the companies settled so far are
// still exported and the context error is returned.
func RunLocal(ctx context.Context, opts LocalOptions, enricher enrich.Enricher, logger *zap.Logger, journal *store.Journal) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutputPath(opts.InputPath)
	}
	if _, err := localio.FormatFromPath(opts.OutputPath); err != nil {
		return Summary{}, &enrich.ConfigurationError{Msg: "output: " + err.Error()}
	}

	runID := uuid.NewString()
	log := logger.With(zap.String("run_id", runID))
	runStart := time.Now()
	summary := Summary{RunID: runID, Output: opts.OutputPath}

	log.Info("run start",
		zap.String("input", opts.InputPath),
		zap.String("output", opts.OutputPath),
		zap.String("model", opts.Model),
		zap.Int("workers", opts.Pipeline.Workers),
		zap.Int("max_retries", opts.Pipeline.MaxRetries),
		zap.Duration("request_timeout", opts.Pipeline.RequestTimeout),
		zap.Float64("rate_limit_rps", opts.Pipeline.RateLimitRPS),
	)

	readStart := time.Now()
	names, err := localio.NameFile{Path: opts.InputPath, SkipHeader: opts.SkipHeader}.Load(ctx)
	if err != nil {
		return summary, &enrich.ImportError{Msg: fmt.Sprintf("read %s: %s", opts.InputPath, err)}
	}
	items, err := pipeline.Import(names)
	if err != nil {
		return summary, err
	}
	summary.Total = len(items)
	log.Info("loaded companies",
		zap.Int("companies", len(items)),
		zap.Int("cells", len(names)),
		zap.Duration("duration", time.Since(readStart).Round(time.Millisecond)),
	)

	if journal != nil {
		if err := journal.BeginRun(ctx, store.Run{
			ID:        runID,
			Input:     opts.InputPath,
			Output:    opts.OutputPath,
			Model:     opts.Model,
			StartedAt: runStart,
			Total:     len(items),
		}); err != nil {
			log.Warn("journal disabled for this run", zap.Error(err))
			journal = nil
		}
	}

	// Journal writes outlive cancellation so the interrupted state is recorded.
	journalCtx := context.WithoutCancel(ctx)
	observe := func(s pipeline.Snapshot) {
		c := s.Items[s.Changed]
		fields := []zap.Field{
			zap.Int("id", c.ID),
			zap.String("company", c.Name),
			zap.String("status", string(c.Status)),
			zap.Float64("progress", s.Progress),
		}
		switch c.Status {
		case enrich.StatusError:
			log.Warn("company failed", append(fields, zap.String("error", c.Error))...)
		case enrich.StatusDone:
			log.Info("company enriched", append(fields, zap.Int("sources", len(c.Sources)))...)
		default:
			log.Debug("company started", fields...)
		}
		if journal != nil {
			if err := journal.RecordItem(journalCtx, runID, c); err != nil {
				log.Warn("journal write failed", zap.Int("id", c.ID), zap.Error(err))
			}
		}
	}

	enrichStart := time.Now()
	final, runErr := pipeline.Run(ctx, items, newTracedEnricher(enricher, log), opts.Pipeline, observe)
	summary.Done, summary.Failed = countStatuses(final)
	log.Info("enrichment complete",
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("unprocessed", summary.Total-summary.Done-summary.Failed),
		zap.Duration("duration", time.Since(enrichStart).Round(time.Millisecond)),
	)

	writeStart := time.Now()
	contract := schema.ContractFor(opts.Locale, opts.IncludeSources)
	if err := export(context.WithoutCancel(ctx), final, contract, opts.OutputPath); err != nil {
		return summary, err
	}
	log.Info("export written",
		zap.String("output", opts.OutputPath),
		zap.Duration("duration", time.Since(writeStart).Round(time.Millisecond)),
	)

	if runErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", runErr)
	}
	if journal != nil {
		if err := journal.FinishRun(ctx, runID, time.Now()); err != nil {
			log.Warn("journal finish failed", zap.Error(err))
		}
	}
	log.Info("run complete", zap.Duration("total_duration", time.Since(runStart).Round(time.Millisecond)))
	return summary, nil
}

// ExportRun re-exports the recorded state of a journaled run.
func ExportRun(ctx context.Context, journal *store.Journal, runID, outputPath string, contract schema.Contract) (int, error) {
	if _, err := journal.GetRun(ctx, runID); err != nil {
		return 0, err
	}
	items, err := journal.Items(ctx, runID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("run %s has no recorded companies", runID)
	}
	return len(items), export(ctx, items, contract, outputPath)
}

func export(ctx context.Context, items []enrich.Company, contract schema.Contract, outputPath string) error {
	out := localio.SheetFile{Path: outputPath, Sheet: schema.SheetName, Header: contract.Header()}
	if err := out.Store(ctx, pipeline.BuildRows(items, contract)); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}

func countStatuses(items []enrich.Company) (done int, failed int) {
	for _, c := range items {
		switch c.Status {
		case enrich.StatusDone:
			done++
		case enrich.StatusError:
			failed++
		}
	}
	return done, failed
}

// IsUsageError reports whether err should be treated as a configuration or
// input problem rather than a run failure.
func IsUsageError(err error) bool {
	var ce *enrich.ConfigurationError
	var ie *enrich.ImportError
	return errors.As(err, &ce) || errors.As(err, &ie)
}
