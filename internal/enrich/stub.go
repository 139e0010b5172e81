package enrich

import (
	"context"
	"errors"
	"strings"
)

// Stub is a deterministic offline Enricher. Names containing "error" fail with
// a ServiceError; every other name gets a synthetic record.
type Stub struct{}

func (Stub) Enrich(ctx context.Context, name string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	name = strings.TrimSpace(name)
	if strings.Contains(strings.ToLower(name), "error") {
		return Result{}, &ServiceError{Err: errors.New("stub enricher: forced error")}
	}

	slug := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	site := "https://" + slug + ".example"
	return Result{
		Record: Record{
			Website:     site,
			Description: name + " (stub description)",
			Revenue:     "unknown (stub estimate)",
			Laboratories: Laboratories{
				Confirmed: []string{name + " Central Lab"},
				Presumed:  []string{},
			},
			Contacts: []Contact{{Name: "Jane Doe", Title: "Head of R&D", Email: "jane@" + slug + ".example"}},
		},
		Sources: []Citation{{URI: site, Title: name}},
	}, nil
}
