// Package llmjson extracts structured JSON from free-form model output.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"
)

const (
	// paragraphThreshold is the length (in characters) above which a
	// marker-free response is reduced to its last paragraph.
	paragraphThreshold = 500
	snippetLen         = 500
)

const thinkClose = "</think>"

// ErrNotObject is wrapped by a ParseError when the text holds valid JSON that
// is not an object, or nothing usable at all.
var ErrNotObject = errors.New("response is not a JSON object")

var (
	openingFence = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	closingFence = regexp.MustCompile("\r?\n?```\\s*$")
)

// ParseError reports a completion that could not be decoded even after repair.
type ParseError struct {
	// Snippet holds the first 500 characters of the cleaned text.
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse structured output: %v (text: %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Clean strips reasoning preambles and markdown fences from raw and returns
// the candidate JSON text.
func Clean(raw string) string {
	text := raw
	if strings.Contains(text, "<think>") && strings.Contains(text, thinkClose) {
		// An empty tail stays empty; JSON inside the block is never used.
		text = text[strings.Index(text, thinkClose)+len(thinkClose):]
	} else if utf8.RuneCountInString(text) > paragraphThreshold {
		if last, ok := lastParagraph(text); ok {
			text = last
		}
	}

	text = strings.TrimSpace(text)
	text = openingFence.ReplaceAllString(text, "")
	text = closingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func lastParagraph(text string) (string, bool) {
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) < 2 {
		return "", false
	}
	return paras[len(paras)-1], true
}

// Decode cleans raw and unmarshals the JSON object it holds into v. Invalid
// JSON is passed through jsonrepair, then narrowed to the outermost object,
// before giving up with a *ParseError. Valid JSON that is not an object, such
// as null or an array, is a *ParseError too, as is a repair that only yields
// an empty object.
func Decode(raw string, v any) error {
	text := Clean(raw)

	obj, err := findObject(text)
	if err == nil {
		err = json.Unmarshal(obj, v)
	}
	if err != nil {
		return &ParseError{Snippet: truncate(text, snippetLen), Err: err}
	}
	return nil
}

// findObject returns the first candidate rendering of text that is a JSON
// object. The error of the unrepaired text is reported when nothing works.
func findObject(text string) (json.RawMessage, error) {
	obj, err := asObject(text, false)
	if err == nil {
		return obj, nil
	}
	if o, rerr := asObject(text, true); rerr == nil {
		return o, nil
	}
	if inner, ok := outermostObject(text); ok && inner != text {
		if o, ierr := asObject(inner, false); ierr == nil {
			return o, nil
		}
		if o, ierr := asObject(inner, true); ierr == nil {
			return o, nil
		}
	}
	return nil, err
}

func asObject(text string, repair bool) (json.RawMessage, error) {
	if repair {
		repaired, err := jsonrepair.JSONRepair(text)
		if err != nil {
			return nil, err
		}
		text = repaired
	}
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	// jsonrepair turns fragments like "{" into "{}"; that is not an answer.
	if repair && isEmptyObject(trimmed) {
		return nil, ErrNotObject
	}
	return trimmed, nil
}

func isEmptyObject(obj []byte) bool {
	var fields map[string]json.RawMessage
	return json.Unmarshal(obj, &fields) == nil && len(fields) == 0
}

func outermostObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
