package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"google.golang.org/genai"
)

const (
	DefaultModel          = "gemini-2.5-pro"
	DefaultThinkingBudget = 32768
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// ThinkingBudget is the reasoning token budget hint. <=0 uses DefaultThinkingBudget.
	ThinkingBudget int
}

// generator is the subset of *genai.Models used by the enricher.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Enricher struct {
	gen            generator
	apiKey         string
	model          string
	thinkingBudget int32
}

// New builds a Gemini-backed enricher. A blank API key is a *enrich.ConfigurationError.
func New(ctx context.Context, cfg Config) (*Enricher, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &enrich.ConfigurationError{Msg: "GEMINI_API_KEY is required"}
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newEnricher(client.Models, cfg), nil
}

func newEnricher(gen generator, cfg Config) *Enricher {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	budget := cfg.ThinkingBudget
	if budget <= 0 {
		budget = DefaultThinkingBudget
	}
	return &Enricher{
		gen:            gen,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          model,
		thinkingBudget: int32(budget),
	}
}

// Model returns the Gemini model name used for requests.
func (e *Enricher) Model() string {
	return e.model
}

func (e *Enricher) Enrich(ctx context.Context, name string) (enrich.Result, error) {
	if e.apiKey == "" {
		return enrich.Result{}, &enrich.ConfigurationError{Msg: "GEMINI_API_KEY is required"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return enrich.Result{}, &enrich.FormatError{Msg: "empty company name"}
	}

	resp, err := e.gen.GenerateContent(ctx, e.model, genai.Text(buildPrompt(name)), e.requestConfig())
	if err != nil {
		return enrich.Result{}, classifyErr(err)
	}
	if resp == nil {
		return enrich.Result{}, &enrich.FormatError{Msg: "invalid response format from AI: empty response"}
	}

	sources := extractCitations(resp)
	rec, err := enrich.ExtractRecord(resp.Text())
	if err != nil {
		return enrich.Result{}, err
	}
	return enrich.Result{Record: rec, Sources: sources}, nil
}

func (e *Enricher) requestConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(e.thinkingBudget),
		},
		CandidateCount: 1,
	}
}

func buildPrompt(name string) string {
	// No response schema is sent alongside the search tool; the JSON shape lives here.
	return strings.TrimSpace(`
For the company "` + name + `", perform a comprehensive web search to find the following information. Be as thorough as possible.

Your primary goal is to gather a detailed list of contacts.

Required information:
1. website: The official company website URL.
2. description: A brief summary of what the company does.
3. revenue: The latest reported annual revenue or turnover. If an exact figure is not available, provide an estimate and note it as such.
4. laboratories: A list of their laboratories. Distinguish between labs confirmed from official sources (their website or press releases) and labs presumed to exist based on their line of business or job postings.
5. contacts: A comprehensive list of contacts within the company and its labs. For each contact give full name, job title and, if available, email address and phone number. Prioritize research, development, management and laboratory staff.

CRITICAL INSTRUCTION: Your entire response MUST be a single, valid JSON object. Do not include any text, greetings, markdown formatting such as ` + "```json" + `, or explanations outside of the JSON structure. The JSON object must conform to this structure:
{
  "website": "string",
  "description": "string",
  "revenue": "string",
  "laboratories": {
    "confirmed": ["string"],
    "presumed": ["string"]
  },
  "contacts": [
    {
      "name": "string",
      "title": "string",
      "email": "string",
      "phone": "string"
    }
  ]
}
`)
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	svcErr := &enrich.ServiceError{Err: err}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 499:
			// CANCELLED upstream; worth one more try at most.
			return &enrich.LimitedTransientError{Err: svcErr, ExtraRetries: 1}
		case apiErr.Code == 429 || apiErr.Code/100 == 5:
			return &enrich.TransientError{Err: svcErr}
		}
		return svcErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &enrich.TransientError{Err: svcErr}
	}
	return svcErr
}

func extractCitations(resp *genai.GenerateContentResponse) []enrich.Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return []enrich.Citation{}
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return []enrich.Citation{}
	}

	raw := make([]enrich.Citation, 0, len(gm.GroundingChunks))
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		raw = append(raw, enrich.Citation{
			URI:   strings.TrimSpace(chunk.Web.URI),
			Title: strings.TrimSpace(chunk.Web.Title),
		})
	}
	return enrich.DedupeCitations(raw)
}
