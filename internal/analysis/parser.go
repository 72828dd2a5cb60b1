// Package analysis extracts structured fields from the raw text an external
// analysis service returns. The payload is loosely specified and frequently
// malformed: fenced, wrapped in a chat-completion envelope, or trailed by
// prose. Parsing degrades stage by stage instead of failing outright.
package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrUnrecoverable means no stage, including field-level extraction, found
// anything usable in the text.
var ErrUnrecoverable = errors.New("analysis text yielded no recognizable fields")

// Stage identifies which extraction strategy succeeded. Ordered weakest
// last; exposed for telemetry and tests.
type Stage int

const (
	// StageDirect decoded the fence-stripped text as-is.
	StageDirect Stage = iota
	// StageEnvelope found the payload nested in choices[0].message.content.
	StageEnvelope
	// StageBracket decoded the substring between the first '{' and last '}'.
	StageBracket
	// StageFields fell back to regex extraction of individual string fields.
	StageFields
)

func (s Stage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StageEnvelope:
		return "envelope"
	case StageBracket:
		return "bracket"
	case StageFields:
		return "fields"
	default:
		return "unknown"
	}
}

// Item is one extracted calendar event or reminder.
type Item struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

// Result is the structured analysis of one recording.
type Result struct {
	SuggestedTitle string `json:"suggestedTitle,omitempty"`
	Summary        string `json:"summary"`
	Events         []Item `json:"events,omitempty"`
	Reminders      []Item `json:"reminders,omitempty"`
}

// envelope is the chat-completion wrapper some responses arrive in.
type envelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Parse turns raw analysis text into a Result, reporting the stage that
// succeeded. It never panics on malformed input; when even field extraction
// finds nothing it returns ErrUnrecoverable.
func Parse(raw string) (*Result, Stage, error) {
	cleaned := stripFences(raw)

	if result, ok := decodeResult(cleaned); ok {
		return result, StageDirect, nil
	}

	if inner, ok := envelopeContent(cleaned); ok {
		innerClean := stripFences(inner)
		if result, ok := decodeResult(innerClean); ok {
			return result, StageEnvelope, nil
		}
		if result, ok := decodeBracketed(innerClean); ok {
			return result, StageEnvelope, nil
		}
	}

	if result, ok := decodeBracketed(cleaned); ok {
		return result, StageBracket, nil
	}

	if result, ok := extractFields(raw); ok {
		return result, StageFields, nil
	}

	return nil, 0, ErrUnrecoverable
}

// stripFences removes Markdown code-fence lines: lines consisting solely of
// a fence marker, optionally tagged json.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "```" || strings.EqualFold(trimmed, "```json") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// decodeResult attempts a strict decode of text into the target schema.
// json.Unmarshal rejects trailing non-whitespace, so payloads followed by
// prose fall through to the bracket stage. The decode counts only if it
// produced at least one populated field, so arbitrary JSON does not
// masquerade as a result.
func decodeResult(text string) (*Result, bool) {
	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, false
	}
	if !populated(&result) {
		return nil, false
	}
	return &result, true
}

// envelopeContent extracts the nested message text from a chat-completion
// style wrapper.
func envelopeContent(text string) (string, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return "", false
	}
	if len(env.Choices) == 0 {
		return "", false
	}
	content := env.Choices[0].Message.Content
	return content, content != ""
}

// decodeBracketed decodes only the substring between the first '{' and the
// last '}', which shakes off leading and trailing prose.
func decodeBracketed(text string) (*Result, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, false
	}
	if !populated(&result) {
		return nil, false
	}
	return &result, true
}

var (
	titlePattern   = regexp.MustCompile(`"suggestedTitle"\s*:\s*("(?:[^"\\]|\\.)*")`)
	summaryPattern = regexp.MustCompile(`"summary"\s*:\s*("(?:[^"\\]|\\.)*")`)
)

// extractFields scrapes suggestedTitle and summary string values straight
// out of the raw text, accepting a partial result rather than none.
func extractFields(raw string) (*Result, bool) {
	result := &Result{}
	found := false

	if m := titlePattern.FindStringSubmatch(raw); m != nil {
		if value, err := unquoteJSON(m[1]); err == nil && value != "" {
			result.SuggestedTitle = value
			found = true
		}
	}
	if m := summaryPattern.FindStringSubmatch(raw); m != nil {
		if value, err := unquoteJSON(m[1]); err == nil && value != "" {
			result.Summary = value
			found = true
		}
	}

	return result, found
}

func unquoteJSON(literal string) (string, error) {
	var s string
	err := json.Unmarshal([]byte(literal), &s)
	return s, err
}

func populated(r *Result) bool {
	return r.Summary != "" || r.SuggestedTitle != "" ||
		len(r.Events) > 0 || len(r.Reminders) > 0
}
