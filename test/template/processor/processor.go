package processor

import (
	"context"
	"strings"
)

type Result struct {
	Input  string
	Output string
}

// Processor normalizes a company name: trimmed, inner whitespace collapsed.
type Processor struct{}

func (Processor) Process(_ context.Context, in string) (Result, error) {
	return Result{Input: in, Output: strings.Join(strings.Fields(in), " ")}, nil
}
