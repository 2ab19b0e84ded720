package llmextract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BiographAI/biograph/engine/domain"
)

// Result is the parsed, vocabulary-filtered output of one extraction call.
type Result struct {
	Entities      []domain.RawEntity       `json:"entities"`
	Relationships []domain.RawRelationship `json:"relationships"`
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// unwrapFences strips an optional ```json ... ``` (or bare ```...```)
// fence around the model's response. A truncated response can open a
// fence without closing it; the prefix is stripped on its own in that
// case so bracket repair still sees bare JSON.
func unwrapFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		return strings.TrimSpace(text)
	}
	return text
}

// repairBrackets appends the closers for any unmatched '{' or '[',
// ignoring bracket characters inside string literals, so a JSON response
// truncated mid-array or mid-object can still parse.
func repairBrackets(text string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return text
	}
	var closers strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closers.WriteByte('}')
		} else {
			closers.WriteByte(']')
		}
	}
	return text + closers.String()
}

// Parse recovers {entities, relationships} from raw LLM output, applying
// fence-stripping, straight unmarshal, then bracket-repair-and-retry, then
// giving up with a logged, non-fatal empty result.
// Entities/relationships outside the closed vocabulary are dropped.
func Parse(log *slog.Logger, raw string) Result {
	if log == nil {
		log = slog.Default()
	}
	body := unwrapFences(raw)

	var parsed Result
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		return filterVocab(parsed)
	}

	repaired := repairBrackets(body)
	if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
		return filterVocab(parsed)
	}

	preview := body
	if r := []rune(preview); len(r) > 200 {
		preview = string(r[:200])
	}
	log.Warn("llmextract: could not parse extraction output after bracket repair", "preview", preview)
	return Result{}
}

// filterVocab drops entities/relationships whose type is outside the
// closed vocabulary.
func filterVocab(r Result) Result {
	out := Result{
		Entities:      make([]domain.RawEntity, 0, len(r.Entities)),
		Relationships: make([]domain.RawRelationship, 0, len(r.Relationships)),
	}
	for _, e := range r.Entities {
		if domain.ValidateRawEntity(e) == nil {
			out.Entities = append(out.Entities, e)
		}
	}
	for _, rel := range r.Relationships {
		if domain.ValidateRawRelationship(rel) == nil {
			out.Relationships = append(out.Relationships, rel)
		}
	}
	return out
}
