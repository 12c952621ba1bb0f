package textutil

import (
	"strings"
	"testing"
)

func TestCleanStripsHTML(t *testing.T) {
	t.Parallel()

	got := Clean("<html><body><p>Hello   world.</p><script>var x;</script> More\n text.</body></html>")
	if got == "" {
		t.Fatalf("expected non-empty cleaned text")
	}
	if strings.ContainsAny(got, "<>") {
		t.Fatalf("expected markup removed, got %q", got)
	}
}

func TestCleanPlainTextWhitespace(t *testing.T) {
	t.Parallel()

	got := Clean("  a \t b\n\nc  ")
	if got != "a b c" {
		t.Fatalf("unexpected whitespace normalization: %q", got)
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	sentences := SplitSentences("First sentence. Second one! Third?\nFourth line")
	if len(sentences) != 4 {
		t.Fatalf("unexpected sentence count: %d (%v)", len(sentences), sentences)
	}
	if sentences[0] != "First sentence" {
		t.Fatalf("unexpected first sentence: %q", sentences[0])
	}
}

func TestContentHashStable(t *testing.T) {
	t.Parallel()

	a := ContentHash("same input")
	b := ContentHash("same input")
	c := ContentHash("other input")
	if a != b {
		t.Fatalf("hash not deterministic")
	}
	if a == c {
		t.Fatalf("distinct inputs must not collide in test fixtures")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 length 64, got %d", len(a))
	}
}

func TestTokenSetOverlapPunctuationInsensitive(t *testing.T) {
	t.Parallel()

	score := TokenSetOverlap(
		"The central bank raised interest rates again today",
		"The central bank raised interest rates again today!!!",
	)
	if score <= 0.9 {
		t.Fatalf("expected trailing punctuation variants above 0.9, got %f", score)
	}

	unrelated := TokenSetOverlap(
		"The central bank raised interest rates again today",
		"Local football club wins championship final",
	)
	if unrelated >= 0.9 {
		t.Fatalf("expected unrelated strings well below threshold, got %f", unrelated)
	}
}

func TestTokenSetOverlapEmpty(t *testing.T) {
	t.Parallel()

	if got := TokenSetOverlap("", "anything"); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
}
