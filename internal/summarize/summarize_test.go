package summarize

import (
	"context"
	"strings"
	"testing"
)

func TestMockSummarizerJoinsTitles(t *testing.T) {
	t.Parallel()

	mock := NewMock()
	digest, err := mock.Summarize(context.Background(), "Story", []ArticleInput{
		{Title: "First headline"},
		{Title: "  Second headline  "},
		{Title: ""},
	})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if digest != "First headline. Second headline." {
		t.Errorf("digest = %q", digest)
	}
}

func TestMockSummarizerFallsBackToTopicTitle(t *testing.T) {
	t.Parallel()

	mock := NewMock()
	digest, err := mock.Summarize(context.Background(), "Topic only", nil)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if digest != "Topic only." {
		t.Errorf("digest = %q", digest)
	}

	if _, err := mock.Summarize(context.Background(), "", nil); err == nil {
		t.Error("expected error with no content at all")
	}
}

func TestBuildPromptLimitsArticles(t *testing.T) {
	t.Parallel()

	articles := make([]ArticleInput, 8)
	for i := range articles {
		articles[i] = ArticleInput{Title: "headline", Text: "body"}
	}

	prompt := buildPrompt("Big story", articles)
	if got := strings.Count(prompt, "ARTICLE "); got != maxDigestArticle {
		t.Errorf("prompt contains %d articles, want %d", got, maxDigestArticle)
	}
	if !strings.Contains(prompt, "Big story") {
		t.Error("prompt missing topic title")
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Lange sætning her. ", 100)
	truncated := truncateRunes(long, 200)
	if len([]rune(truncated)) > 200 {
		t.Errorf("truncated length = %d runes", len([]rune(truncated)))
	}
	if !strings.HasSuffix(truncated, ".") {
		t.Errorf("expected sentence-boundary cut, got %q", truncated[len(truncated)-10:])
	}
}
