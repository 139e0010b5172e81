package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/pkg/pipeline/redact"
	"github.com/shpitdev/company-enricher/pkg/pipeline/worker"
)

type Options struct {
	// Workers > 1 enables bounded parallelism. The default processes one company at a time.
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
}

// Snapshot is the full company list as of one state transition.
type Snapshot struct {
	Items    []enrich.Company
	Progress float64

	// Changed is the index of the company whose state just changed.
	Changed int
}

// Observer receives a Snapshot after every state transition. Calls are serialized.
type Observer func(Snapshot)

// Import turns first-column cell values into pending companies.
//
// Names are trimmed and blank names dropped; IDs follow the order of the
// remaining names starting at 0.
func Import(names []string) ([]enrich.Company, error) {
	out := make([]enrich.Company, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		out = append(out, enrich.Company{
			ID:     len(out),
			Name:   name,
			Status: enrich.StatusPending,
		})
	}
	if len(out) == 0 {
		return nil, &enrich.ImportError{Msg: "no company names found in the first column of the sheet"}
	}
	return out, nil
}

// Progress is the share of companies in a terminal state, as a percentage.
func Progress(items []enrich.Company) float64 {
	if len(items) == 0 {
		return 0
	}
	settled := 0
	for _, c := range items {
		if c.Status.Terminal() {
			settled++
		}
	}
	return float64(settled) / float64(len(items)) * 100
}

// Run enriches every company and returns the final list.
//
// Enrichment failures are recorded on the company (status error) and never
// stop the run. The returned error is non-nil only when ctx ends early; the
// list is still returned, with unreached companies left pending.
func Run(ctx context.Context, items []enrich.Company, enricher enrich.Enricher, opts Options, observe Observer) ([]enrich.Company, error) {
	t := newTracker(items, observe)

	processor := func(reqCtx context.Context, idx int) (enrich.Result, error) {
		id, name := t.begin(idx)
		return enricher.Enrich(context.WithValue(reqCtx, itemIDKey{}, id), name)
	}
	onResult := func(res worker.Result[int, enrich.Result]) error {
		t.settle(res.Input, res.Output, res.Err)
		return nil
	}

	indexes := make([]int, len(items))
	for i := range indexes {
		indexes[i] = i
	}

	_, err := worker.ProcessAllWithCallback(ctx, indexes, processor, onResult, worker.Options{
		Workers:           opts.Workers,
		MaxRetries:        opts.MaxRetries,
		RequestTimeout:    opts.RequestTimeout,
		RateLimitRPS:      opts.RateLimitRPS,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        2 * time.Second,
		BackoffJitterFrac: 0.2,
	})
	return t.snapshot(), err
}

type itemIDKey struct{}

// ItemID returns the ID of the company an Enrich call made by Run belongs to.
func ItemID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(itemIDKey{}).(int)
	return id, ok
}

// tracker owns the company list during a run and publishes snapshots.
type tracker struct {
	mu      sync.Mutex
	items   []enrich.Company
	observe Observer
}

func newTracker(items []enrich.Company, observe Observer) *tracker {
	return &tracker{items: cloneCompanies(items), observe: observe}
}

func (t *tracker) begin(idx int) (int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &t.items[idx]
	if c.Status == enrich.StatusPending {
		c.Status = enrich.StatusProcessing
		t.publishLocked(idx)
	}
	return c.ID, c.Name
}

func (t *tracker) settle(idx int, res enrich.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &t.items[idx]
	// Only a started company can settle; one the run never reached stays pending.
	if c.Status != enrich.StatusProcessing {
		return
	}
	if err != nil {
		c.Status = enrich.StatusError
		c.Data = nil
		c.Sources = nil
		c.Error = errorMessage(err)
	} else {
		rec := res.Record
		c.Status = enrich.StatusDone
		c.Data = &rec
		c.Sources = enrich.DedupeCitations(res.Sources)
		c.Error = ""
	}
	t.publishLocked(idx)
}

func (t *tracker) publishLocked(changed int) {
	if t.observe == nil {
		return
	}
	items := cloneCompanies(t.items)
	t.observe(Snapshot{Items: items, Progress: Progress(items), Changed: changed})
}

func (t *tracker) snapshot() []enrich.Company {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneCompanies(t.items)
}

func errorMessage(err error) string {
	msg := redact.Secrets(err.Error())
	if msg == "" {
		return "an unknown error occurred"
	}
	return msg
}

func cloneCompanies(in []enrich.Company) []enrich.Company {
	out := make([]enrich.Company, len(in))
	for i, c := range in {
		if c.Data != nil {
			rec := cloneRecord(*c.Data)
			c.Data = &rec
		}
		if c.Sources != nil {
			c.Sources = append([]enrich.Citation(nil), c.Sources...)
			if len(c.Sources) == 0 {
				c.Sources = []enrich.Citation{}
			}
		}
		out[i] = c
	}
	return out
}

func cloneRecord(r enrich.Record) enrich.Record {
	if r.Laboratories.Confirmed != nil {
		r.Laboratories.Confirmed = append([]string(nil), r.Laboratories.Confirmed...)
	}
	if r.Laboratories.Presumed != nil {
		r.Laboratories.Presumed = append([]string(nil), r.Laboratories.Presumed...)
	}
	if r.Contacts != nil {
		r.Contacts = append([]enrich.Contact(nil), r.Contacts...)
	}
	return r
}
