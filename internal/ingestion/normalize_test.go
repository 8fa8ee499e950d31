package ingestion

import "testing"

func Test_Normalize_CollapsesWhitespace(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text untouched", "hello world", "hello world"},
		{"tabs and spaces collapse", "a \t  b\t\tc", "a b c"},
		{"carriage returns collapse", "a\r\n b", "a\n b"},
		{"null bytes removed", "a\x00b\x00c", "abc"},
		{"excess newlines collapse to two", "a\n\n\n\n\nb", "a\n\nb"},
		{"paragraph break preserved", "a\n\nb", "a\n\nb"},
		{"surrounding whitespace trimmed", "  \n hello \n  ", "hello"},
		{"unicode spaces collapse", "a  b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func Test_Normalize_IsIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"",
		"plain",
		"a \t b\n\n\n\nc\x00d  \n",
		"  mixed\r\nline   endings\n\n\n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
