package enrich

import (
	"encoding/json"
	"strings"
)

// ExtractRecord finds the JSON object embedded in free-form model output and
// decodes it into a Record.
//
// The object is taken to span from the first '{' to the last '}' in the text.
// This is not a balanced-brace scan: stray braces in surrounding prose widen
// the span and usually make the decode fail.
func ExtractRecord(raw string) (Record, error) {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Record{}, &FormatError{Msg: "invalid response format from AI: no JSON object found"}
	}

	var rec Record
	if err := json.Unmarshal([]byte(text[start:end+1]), &rec); err != nil {
		return Record{}, &FormatError{Msg: "failed to parse AI response: the format was not valid JSON", Err: err}
	}
	return rec, nil
}
