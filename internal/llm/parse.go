package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var ErrEmptyResponse = errors.New("empty model response")

// ReportedError is the model declaring that it could not extract anything,
// signalled by an "error" key in its JSON.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return "model reported error: " + e.Message
}

// ParseExtraction turns raw model text into an Extraction. It returns the
// normalized JSON alongside the typed value.
func ParseExtraction(raw string, logger *slog.Logger) (Extraction, []byte, error) {
	content := StripCodeFences(raw)
	if content == "" {
		return Extraction{}, nil, ErrEmptyResponse
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return Extraction{}, nil, fmt.Errorf("decode model json: %w", err)
	}
	if v, ok := m["error"]; ok {
		return Extraction{}, nil, &ReportedError{Message: fmt.Sprint(v)}
	}

	normalized, _, err := NormalizeExtractionJSON(m, logger)
	if err != nil {
		return Extraction{}, nil, err
	}
	if err := ValidateExtraction(normalized); err != nil {
		return Extraction{}, normalized, fmt.Errorf("schema validation failed: %w", err)
	}

	var out Extraction
	if err := json.Unmarshal(normalized, &out); err != nil {
		return Extraction{}, normalized, fmt.Errorf("unmarshal extraction: %w", err)
	}
	if out.Items == nil {
		out.Items = []Item{}
	}
	return out, normalized, nil
}

// ParseVerdict turns raw auditor text into a ValidationOutcome.
func ParseVerdict(raw string) (ValidationOutcome, error) {
	content := StripCodeFences(raw)
	if content == "" {
		return ValidationOutcome{}, ErrEmptyResponse
	}
	if err := ValidateVerdict([]byte(content)); err != nil {
		return ValidationOutcome{}, err
	}
	var out ValidationOutcome
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return ValidationOutcome{}, fmt.Errorf("unmarshal verdict: %w", err)
	}
	if out.Reasons == nil {
		out.Reasons = []string{}
	}
	// a verdict from the model is never a skip, whatever it claims
	out.Skipped, out.SkipReason = false, ""
	return out, nil
}
