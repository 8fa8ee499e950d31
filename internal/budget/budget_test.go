package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"), // 4 overhead + 1 (role) + 2 (content) = 7
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	// Two messages: 14
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_TrimChunks_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	chunks := []string{"first chunk", "second chunk"}
	got := TrimChunks("question text", chunks, DefaultMaxContextTokens)
	if len(got) != 2 {
		t.Errorf("want 2 chunks, got %d", len(got))
	}
}

func Test_TrimChunks_DropsLowestRankedFirst(t *testing.T) {
	t.Parallel()
	// Chunks arrive best-first. 40 chars each → 10 tokens each; three chunks
	// = 30 tokens. A 25-token budget forces dropping the tail chunk only.
	chunks := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	got := TrimChunks("", chunks, 25)
	if len(got) != 2 {
		t.Fatalf("want 2 chunks after trim, got %d", len(got))
	}
	if got[0][0] != 'a' || got[1][0] != 'b' {
		t.Errorf("must keep the best-ranked chunks, got %q, %q", got[0][:1], got[1][:1])
	}
}

func Test_TrimChunks_AlwaysKeepsOneChunk(t *testing.T) {
	t.Parallel()
	// Fixed text alone blows the budget; the top chunk survives anyway so the
	// model always sees some context.
	fixed := strings.Repeat("x", 4*7000) // ~7000 tokens
	chunks := []string{"best chunk", "worse chunk"}
	got := TrimChunks(fixed, chunks, 6000)
	if len(got) != 1 {
		t.Fatalf("want exactly 1 chunk, got %d", len(got))
	}
	if got[0] != "best chunk" {
		t.Errorf("want the top-ranked chunk kept, got %q", got[0])
	}
}

func Test_TrimChunks_EmptyInput(t *testing.T) {
	t.Parallel()
	if got := TrimChunks("anything", nil, 100); len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}
