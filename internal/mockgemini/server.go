package mockgemini

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Call records a generateContent request made to the mock service.
type Call struct {
	Method  string
	Path    string
	Model   string
	Company string
	APIKey  string

	// GoogleSearch is true when the request enabled the search tool.
	GoogleSearch bool
	// Body is the raw request payload.
	Body string
}

// Citation is a grounding chunk returned with a reply.
type Citation struct {
	URI   string `yaml:"uri"`
	Title string `yaml:"title"`
}

// Reply is the canned answer for one company.
type Reply struct {
	Text      string     `yaml:"text"`
	Citations []Citation `yaml:"citations"`

	// StatusCode >= 400 answers with an API error instead of a candidate.
	StatusCode int    `yaml:"status_code"`
	Message    string `yaml:"message"`
}

// Server implements the Gemini generateContent endpoint with canned replies keyed
// by the company name found in the prompt.
type Server struct {
	mu       sync.Mutex
	replies  map[string]Reply
	fallback Reply
	calls    []Call

	expectedAPIKey string
}

// New constructs a mock server. Companies without a reply get a prose answer
// containing no JSON object.
func New() *Server {
	return &Server{
		replies:  make(map[string]Reply),
		fallback: Reply{Text: "I could not find reliable information about this company."},
	}
}

// SetReply sets the canned reply for company.
func (s *Server) SetReply(company string, r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[company] = r
}

// SetFallback sets the reply for companies without an explicit one.
func (s *Server) SetFallback(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
}

// RequireAPIKey enforces that requests carry the x-goog-api-key header.
// If key is empty, the key is not checked.
func (s *Server) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedAPIKey = strings.TrimSpace(key)
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleGenerateContent)
	return mux
}

// LoadReplies reads a YAML fixture mapping company names to replies.
//
// Example:
//
//	Acme:
//	  text: '{"website":"https://acme.example"}'
//	  citations:
//	    - uri: https://acme.example
//	      title: Acme
//	Broken Inc:
//	  status_code: 500
//	  message: backend unavailable
func LoadReplies(path string) (map[string]Reply, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replies file: %w", err)
	}
	var out map[string]Reply
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse replies YAML: %w", err)
	}
	return out, nil
}

var companyRe = regexp.MustCompile(`For the company "([^"]*)"`)

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	Tools []map[string]json.RawMessage `json:"tools"`
}

func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	// /{version}/models/{model}:generateContent
	const suffix = ":generateContent"
	if !strings.HasSuffix(r.URL.Path, suffix) {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "read body")
		return
	}
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	model := strings.TrimSuffix(r.URL.Path, suffix)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}

	var prompt strings.Builder
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			prompt.WriteString(p.Text)
		}
	}
	company := ""
	if m := companyRe.FindStringSubmatch(prompt.String()); m != nil {
		company = m[1]
	}

	search := false
	for _, tool := range req.Tools {
		if _, ok := tool["googleSearch"]; ok {
			search = true
		}
	}

	apiKey := r.Header.Get("x-goog-api-key")

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method:       r.Method,
		Path:         r.URL.Path,
		Model:        model,
		Company:      company,
		APIKey:       apiKey,
		GoogleSearch: search,
		Body:         string(body),
	})
	expected := s.expectedAPIKey
	reply, ok := s.replies[company]
	if !ok {
		reply = s.fallback
	}
	s.mu.Unlock()

	if expected != "" && apiKey != expected {
		writeAPIError(w, http.StatusUnauthorized, "API key not valid. Please pass a valid API key.")
		return
	}
	if reply.StatusCode >= 400 {
		msg := reply.Message
		if msg == "" {
			msg = http.StatusText(reply.StatusCode)
		}
		writeAPIError(w, reply.StatusCode, msg)
		return
	}

	writeJSON(w, http.StatusOK, candidateResponse(reply))
}

func candidateResponse(r Reply) map[string]any {
	chunks := make([]any, 0, len(r.Citations))
	for _, c := range r.Citations {
		chunks = append(chunks, map[string]any{
			"web": map[string]any{"uri": c.URI, "title": c.Title},
		})
	}
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": r.Text}},
				},
				"finishReason":      "STOP",
				"groundingMetadata": map[string]any{"groundingChunks": chunks},
			},
		},
	}
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"status":  statusName(code),
		},
	})
}

func statusName(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case code == http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case code >= 500:
		return "INTERNAL"
	default:
		return "INVALID_ARGUMENT"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
