package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/pipeline"
)

// tracedEnricher logs every enrichment request and response with its attempt
// number. Attempts are counted per company row, so duplicate names count apart.
type tracedEnricher struct {
	next enrich.Enricher
	log  *zap.Logger

	mu       sync.Mutex
	attempts map[attemptKey]int
}

type attemptKey struct {
	id   int
	name string
}

func newTracedEnricher(next enrich.Enricher, log *zap.Logger) *tracedEnricher {
	return &tracedEnricher{
		next:     next,
		log:      log,
		attempts: make(map[attemptKey]int),
	}
}

func (t *tracedEnricher) Enrich(ctx context.Context, name string) (enrich.Result, error) {
	name = strings.TrimSpace(name)
	attempt := t.nextAttempt(ctx, name)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.log.Debug("enrich request",
		zap.String("company", name),
		zap.Int("attempt", attempt),
		zap.String("deadline_in", deadlineIn),
	)

	start := time.Now()
	out, err := t.next.Enrich(ctx, name)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		t.log.Debug("enrich response",
			zap.String("company", name),
			zap.Int("attempt", attempt),
			zap.Duration("duration", elapsed),
			zap.String("status", "error"),
			zap.Bool("retryable", isRetryable(err)),
			zap.Error(err),
		)
		return out, err
	}

	t.log.Debug("enrich response",
		zap.String("company", name),
		zap.Int("attempt", attempt),
		zap.Duration("duration", elapsed),
		zap.String("status", "ok"),
		zap.String("website", out.Record.Website),
		zap.Int("contacts", len(out.Record.Contacts)),
		zap.Int("sources", len(out.Sources)),
	)
	return out, nil
}

func (t *tracedEnricher) nextAttempt(ctx context.Context, name string) int {
	key := attemptKey{id: -1, name: name}
	if id, ok := pipeline.ItemID(ctx); ok {
		key = attemptKey{id: id}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}

func isRetryable(err error) bool {
	var te *enrich.TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *enrich.LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
