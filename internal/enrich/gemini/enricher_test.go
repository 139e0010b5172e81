package gemini

import (
	"context"
	"errors"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/mockgemini"
	"google.golang.org/genai"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return false }

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	calls   int
	model   string
	prompt  string
	request *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.request = config
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompt += p.Text
		}
	}
	return f.resp, f.err
}

func textResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: text}},
			},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: chunks},
		}},
	}
}

func webChunk(uri, title string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: uri, Title: title}}
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
		wantLimited   bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_500", in: genai.APIError{Code: 500}, wantTransient: true},
		{name: "api_499", in: genai.APIError{Code: 499}, wantLimited: true},
		{name: "api_401", in: genai.APIError{Code: 401}},
		{name: "net_timeout", in: timeoutNetErr{}, wantTransient: true},
		{name: "wrapped_api_429_text", in: errors.New(genai.APIError{Code: 429}.Error())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var se *enrich.ServiceError
			if !errors.As(got, &se) {
				t.Fatalf("expected ServiceError, got %T %v", got, got)
			}
			var te *enrich.TransientError
			if isTransient := errors.As(got, &te); isTransient != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%T %v)", isTransient, tt.wantTransient, got, got)
			}
			var lte *enrich.LimitedTransientError
			if isLimited := errors.As(got, &lte); isLimited != tt.wantLimited {
				t.Fatalf("limited=%v want=%v (err=%T %v)", isLimited, tt.wantLimited, got, got)
			}
		})
	}

	if classifyErr(nil) != nil {
		t.Fatalf("classifyErr(nil) must be nil")
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{APIKey: "  "})
	var ce *enrich.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T %v", err, err)
	}
}

func TestEnrich_MissingAPIKeyMakesNoCalls(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"website":"a.com"}`)}
	e := newEnricher(gen, Config{})

	_, err := e.Enrich(context.Background(), "Acme")
	var ce *enrich.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T %v", err, err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected 0 service calls, got %d", gen.calls)
	}
}

func TestEnrich_ParsesRecordAndCitations(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(
		`Sure! {"website":"https://acme.example","description":"Anvils","revenue":"$5M",
		"laboratories":{"confirmed":["Desert Lab"],"presumed":[]},
		"contacts":[{"name":"Wile E.","title":"CTO"}]} Hope this helps.`,
		webChunk("x", "A"),
		webChunk("x", "B"),
		webChunk("y", "C"),
		webChunk("", "no uri"),
		&genai.GroundingChunk{},
	)}
	e := newEnricher(gen, Config{APIKey: "test-key"})

	res, err := e.Enrich(context.Background(), "  Acme  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Record.Website != "https://acme.example" || len(res.Record.Contacts) != 1 {
		t.Fatalf("unexpected record: %#v", res.Record)
	}
	want := []enrich.Citation{{URI: "x", Title: "A"}, {URI: "y", Title: "C"}}
	if !slices.Equal(res.Sources, want) {
		t.Fatalf("unexpected sources: %#v", res.Sources)
	}

	if gen.calls != 1 || gen.model != DefaultModel {
		t.Fatalf("unexpected calls=%d model=%q", gen.calls, gen.model)
	}
	if !strings.Contains(gen.prompt, `For the company "Acme"`) {
		t.Fatalf("prompt does not name the company: %q", gen.prompt)
	}
	if len(gen.request.Tools) != 1 || gen.request.Tools[0].GoogleSearch == nil {
		t.Fatalf("expected google search tool, got %#v", gen.request.Tools)
	}
	if gen.request.ThinkingConfig == nil || gen.request.ThinkingConfig.ThinkingBudget == nil ||
		*gen.request.ThinkingConfig.ThinkingBudget != DefaultThinkingBudget {
		t.Fatalf("unexpected thinking config: %#v", gen.request.ThinkingConfig)
	}
}

func TestEnrich_NoCitationsIsEmptyNotNil(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"website":"a.com"}`}}},
		}},
	}}
	res, err := newEnricher(gen, Config{APIKey: "k"}).Enrich(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sources == nil || len(res.Sources) != 0 {
		t.Fatalf("expected empty non-nil sources, got %#v", res.Sources)
	}
}

func TestEnrich_Failures(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: 400, Message: "bad request"}}
		_, err := newEnricher(gen, Config{APIKey: "k"}).Enrich(context.Background(), "Acme")
		var se *enrich.ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("expected ServiceError, got %T %v", err, err)
		}
	})

	t.Run("no json", func(t *testing.T) {
		gen := &fakeGenerator{resp: textResponse("No data found.")}
		_, err := newEnricher(gen, Config{APIKey: "k"}).Enrich(context.Background(), "Acme")
		var fe *enrich.FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FormatError, got %T %v", err, err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		gen := &fakeGenerator{resp: textResponse(`{"website": }`)}
		_, err := newEnricher(gen, Config{APIKey: "k"}).Enrich(context.Background(), "Acme")
		var fe *enrich.FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FormatError, got %T %v", err, err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		gen := &fakeGenerator{}
		_, err := newEnricher(gen, Config{APIKey: "k"}).Enrich(context.Background(), "   ")
		var fe *enrich.FormatError
		if !errors.As(err, &fe) || gen.calls != 0 {
			t.Fatalf("expected FormatError without calls, got %T %v calls=%d", err, err, gen.calls)
		}
	})
}

func TestEnrich_AgainstMockServer(t *testing.T) {
	t.Parallel()

	mock := mockgemini.New()
	mock.RequireAPIKey("dummy-key")
	mock.SetReply("Acme", mockgemini.Reply{
		Text: `{"website":"https://acme.example","description":"Anvils","revenue":"$5M",
			"laboratories":{"confirmed":["Desert Lab"],"presumed":["Canyon Lab"]},
			"contacts":[{"name":"Wile E.","title":"CTO","phone":"+1 555 0100"}]}`,
		Citations: []mockgemini.Citation{
			{URI: "https://acme.example", Title: "Acme"},
			{URI: "https://acme.example", Title: "Acme duplicate"},
		},
	})
	mock.SetReply("Zen", mockgemini.Reply{StatusCode: 400, Message: "bad request"})
	ts := httptest.NewServer(mock.Handler())
	defer ts.Close()

	ctx := context.Background()
	e, err := New(ctx, Config{APIKey: "dummy-key", Model: "gemini-test", BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}

	res, err := e.Enrich(ctx, "Acme")
	if err != nil {
		t.Fatalf("enrich Acme: %v", err)
	}
	if res.Record.Website != "https://acme.example" || res.Record.Contacts[0].Phone != "+1 555 0100" {
		t.Fatalf("unexpected record: %#v", res.Record)
	}
	if !slices.Equal(res.Sources, []enrich.Citation{{URI: "https://acme.example", Title: "Acme"}}) {
		t.Fatalf("unexpected sources: %#v", res.Sources)
	}

	_, err = e.Enrich(ctx, "Zen")
	var se *enrich.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError for Zen, got %T %v", err, err)
	}

	_, err = e.Enrich(ctx, "Unknown Co")
	var fe *enrich.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError for prose reply, got %T %v", err, err)
	}

	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d: %#v", len(calls), calls)
	}
	if calls[0].Company != "Acme" || calls[0].Model != "gemini-test" || !calls[0].GoogleSearch {
		t.Fatalf("unexpected call[0]: %#v", calls[0])
	}
	if calls[0].APIKey != "dummy-key" {
		t.Fatalf("expected API key header, got %q", calls[0].APIKey)
	}
}
