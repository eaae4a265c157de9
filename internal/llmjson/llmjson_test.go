package llmjson

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

type verdict struct {
	QuestionType string `json:"question_type"`
	ValueLevel   string `json:"value_level"`
	TopicShift   bool   `json:"topic_shift"`
	Reason       string `json:"reason"`
}

const bare = `{"question_type": "technical", "value_level": "high", "topic_shift": true, "reason": "asks for detail"}`

var bareWant = verdict{QuestionType: "technical", ValueLevel: "high", TopicShift: true, Reason: "asks for detail"}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", bare, bare},
		{"json fence", "```json\n" + bare + "\n```", bare},
		{"plain fence", "```\n" + bare + "\n```", bare},
		{"inline fence", "```json" + bare + "```", bare},
		{"think block", "<think>The user wants\n\nsomething.</think>\n" + bare, bare},
		{"think then fence", "<think>hmm</think>\n```json\n" + bare + "\n```\n", bare},
		{"whitespace", "\n\t " + bare + "  \n", bare},
		{"first close ends reasoning", "<think>a</think>" + bare + "\n<think>b</think>", bare + "\n<think>b</think>"},
		{"think only", `<think>draft {"value_level": "high"}</think>`, ""},
		{"whitespace after think", "<think>a</think> \n\t", ""},
		{"short multi paragraph untouched", "Intro\n\n" + bare, "Intro\n\n" + bare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.raw); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClean_LongTextKeepsLastParagraph(t *testing.T) {
	narration := strings.Repeat("Let me consider the question carefully. ", 20)
	raw := narration + "\n\n" + "More reasoning here.\n\n" + bare
	if utf8.RuneCountInString(raw) <= paragraphThreshold {
		t.Fatal("fixture too short")
	}
	if got := Clean(raw); got != bare {
		t.Errorf("Clean() = %q, want last paragraph", got)
	}
}

func TestClean_LongSingleParagraphUntouched(t *testing.T) {
	raw := `{"reason": "` + strings.Repeat("x", 600) + `"}`
	if got := Clean(raw); got != raw {
		t.Error("single paragraph should not be altered")
	}
}

func TestDecode_Idempotent(t *testing.T) {
	var first, second verdict
	if err := Decode(bare, &first); err != nil {
		t.Fatalf("first decode: %v", err)
	}
	if err := Decode(bare, &second); err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if !reflect.DeepEqual(first, second) || first != bareWant {
		t.Errorf("got %+v and %+v", first, second)
	}
	if Clean(Clean(bare)) != Clean(bare) {
		t.Error("Clean is not idempotent on clean input")
	}
}

func TestDecode_WrappedMatchesBare(t *testing.T) {
	wrapped := "<think>\nThe question continues the earlier topic.\n</think>\n\n```json\n" + bare + "\n```"

	var got verdict
	if err := Decode(wrapped, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != bareWant {
		t.Errorf("got %+v, want %+v", got, bareWant)
	}
}

func TestDecode_RepairsTruncatedJSON(t *testing.T) {
	truncated := `{"question_type": "deepening", "value_level": "low", "topic_shift": false`

	var got verdict
	if err := Decode(truncated, &got); err != nil {
		t.Fatalf("expected repair, got %v", err)
	}
	if got.QuestionType != "deepening" || got.ValueLevel != "low" {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_TrailingComma(t *testing.T) {
	var got verdict
	if err := Decode(`{"question_type": "emotional", "value_level": "medium",}`, &got); err != nil {
		t.Fatalf("expected repair, got %v", err)
	}
	if got.QuestionType != "emotional" {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_ObjectInsideProse(t *testing.T) {
	var got verdict
	raw := "Sure, here is the classification: " + bare + " Let me know if you need more."
	if err := Decode(raw, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != bareWant {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_ProseIsParseError(t *testing.T) {
	var got verdict
	err := Decode("I'm sorry, I can't classify this question.", &got)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.Snippet != "I'm sorry, I can't classify this question." {
		t.Errorf("Snippet = %q", pe.Snippet)
	}
	if pe.Unwrap() == nil {
		t.Error("ParseError should wrap the decode error")
	}
}

func TestDecode_SnippetBounded(t *testing.T) {
	long := strings.Repeat("é", 800)
	var got verdict
	err := Decode(long, &got)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if n := utf8.RuneCountInString(pe.Snippet); n != snippetLen {
		t.Errorf("snippet has %d characters, want %d", n, snippetLen)
	}
}

func TestDecode_DegenerateRepliesAreParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"null", "null"},
		{"lone brace", "{"},
		{"fenced lone brace", "```json\n{\n```"},
		{"array", `[{"value_level": "high"}]`},
		{"string", `"high"`},
		{"number", "42"},
		{"empty", ""},
		{"whitespace", "  \n "},
		{"think only", `<think>maybe {"question_type": "technical", "value_level": "high"}</think>`},
		{"empty after think", "<think>still deciding</think>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verdict
			err := Decode(tt.raw, &got)

			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T: %v (decoded %+v)", err, err, got)
			}
			if pe.Unwrap() == nil {
				t.Error("ParseError should wrap a cause")
			}
		})
	}
}

func TestDecode_NullIsNotObject(t *testing.T) {
	var got verdict
	err := Decode("null", &got)
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestDecode_LiteralEmptyObjectAccepted(t *testing.T) {
	var got verdict
	if err := Decode("{}", &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (verdict{}) {
		t.Errorf("got %+v", got)
	}
}
