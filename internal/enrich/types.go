package enrich

import (
	"context"

	"github.com/shpitdev/company-enricher/pkg/pipeline/core"
)

// Status is the processing state of one company.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Company is one imported spreadsheet row and its enrichment state.
//
// Data and Sources are set only when Status is StatusDone; Error only when
// Status is StatusError.
type Company struct {
	ID      int
	Name    string
	Status  Status
	Data    *Record
	Sources []Citation
	Error   string
}

// Record is the structured enrichment output for a single company.
type Record struct {
	Website      string       `json:"website"`
	Description  string       `json:"description"`
	Revenue      string       `json:"revenue"`
	Laboratories Laboratories `json:"laboratories"`
	Contacts     []Contact    `json:"contacts"`
}

type Laboratories struct {
	Confirmed []string `json:"confirmed"`
	Presumed  []string `json:"presumed"`
}

type Contact struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Citation is a grounding source returned alongside a search-augmented answer.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Result is what an Enricher returns for one company name.
type Result struct {
	Record  Record
	Sources []Citation
}

// Enricher enriches a single company name.
type Enricher interface {
	Enrich(ctx context.Context, name string) (Result, error)
}

// TransientError marks an error as retryable by pipeline workers.
type TransientError = core.TransientError

// LimitedTransientError is retryable with a per-error retry cap.
type LimitedTransientError = core.LimitedTransientError

// DedupeCitations drops citations without both a URI and a title and keeps the
// first citation seen for each URI. It never returns nil.
func DedupeCitations(in []Citation) []Citation {
	seen := make(map[string]struct{}, len(in))
	out := make([]Citation, 0, len(in))
	for _, c := range in {
		if c.URI == "" || c.Title == "" {
			continue
		}
		if _, ok := seen[c.URI]; ok {
			continue
		}
		seen[c.URI] = struct{}{}
		out = append(out, c)
	}
	return out
}
