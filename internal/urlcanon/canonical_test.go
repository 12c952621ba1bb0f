package urlcanon

import "testing"

func TestCanonicalizeStripsTrackingAndFragment(t *testing.T) {
	t.Parallel()

	got := Default().Canonicalize("https://Example.com/a?id=1&utm_source=x#f")
	want := "https://example.com/a?id=1"
	if got != want {
		t.Fatalf("unexpected canonical url: got %q want %q", got, want)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	t.Parallel()

	canon := Default()
	inputs := []string{
		"https://Example.com/a?id=1&utm_source=x#f",
		"HTTP://NEWS.example.ORG/path?b=2&a=1&ref=tw",
		"https://example.com/plain",
		"not a url at all",
		"",
	}
	for _, input := range inputs {
		once := canon.Canonicalize(input)
		twice := canon.Canonicalize(once)
		if once != twice {
			t.Fatalf("canonicalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestCanonicalizePreservesQueryOrder(t *testing.T) {
	t.Parallel()

	got := Default().Canonicalize("https://example.com/a?z=1&utm_medium=m&a=2&b=3")
	want := "https://example.com/a?z=1&a=2&b=3"
	if got != want {
		t.Fatalf("expected surviving params in original order: got %q want %q", got, want)
	}
}

func TestCanonicalizeMalformedBestEffort(t *testing.T) {
	t.Parallel()

	got := Default().Canonicalize("  ://broken?%zz  ")
	if got == "" {
		t.Fatalf("expected best-effort non-empty output for malformed input")
	}
}

func TestCanonicalizeCustomBlocklist(t *testing.T) {
	t.Parallel()

	canon := New([]string{"fbclid"})
	got := canon.Canonicalize("https://example.com/a?fbclid=1&utm_source=x")
	want := "https://example.com/a?utm_source=x"
	if got != want {
		t.Fatalf("custom block-list not applied: got %q want %q", got, want)
	}
}
