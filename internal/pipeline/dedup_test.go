package pipeline

import (
	"testing"
	"time"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestExactDuplicatesKeepsEarliest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	candidates := []dedupCandidate{
		{ArticleID: 1, ContentHash: "h1", PublishedAt: datePtr(now.Add(-2 * time.Hour))},
		{ArticleID: 2, ContentHash: "h1", PublishedAt: datePtr(now.Add(-5 * time.Hour))},
		{ArticleID: 3, ContentHash: "h1"},
		{ArticleID: 4, ContentHash: "h2", PublishedAt: datePtr(now.Add(-1 * time.Hour))},
	}

	marked := exactDuplicates(candidates, now)

	if len(marked) != 2 {
		t.Fatalf("expected 2 duplicates, got %d: %v", len(marked), marked)
	}
	// Article 2 is the earliest in group h1; the undated article 3 sorts as
	// "now" and loses.
	if marked[1] != 2 || marked[3] != 2 {
		t.Errorf("expected keeper 2 for articles 1 and 3, got %v", marked)
	}
	if _, dup := marked[4]; dup {
		t.Error("singleton group must not be marked")
	}
}

func TestNearDuplicatesGreedyOrder(t *testing.T) {
	t.Parallel()

	candidates := []dedupCandidate{
		{ArticleID: 1, CleanText: "The central bank raised interest rates again on Thursday citing inflation"},
		{ArticleID: 2, CleanText: "The central bank raised interest rates again on Thursday citing inflation!"},
		{ArticleID: 3, CleanText: "The local team won the cup final after a dramatic penalty shootout"},
	}

	marked := nearDuplicates(candidates, nil, 0.9)

	if keeper, dup := marked[2]; !dup || keeper != 1 {
		t.Errorf("trailing punctuation variant should map to article 1, got %v", marked)
	}
	if _, dup := marked[3]; dup {
		t.Error("unrelated text must not be flagged")
	}
}

func TestNearDuplicatesComparesBodiesNotHeadlines(t *testing.T) {
	t.Parallel()

	// Same headline wording inside otherwise unrelated bodies must survive;
	// a rewritten opening over the same body must be caught.
	sharedBody := "negotiators reached a provisional agreement on fishing quotas late " +
		"tuesday after three days of talks in brussels according to officials"
	candidates := []dedupCandidate{
		{ArticleID: 1, CleanText: "Breaking: " + sharedBody},
		{ArticleID: 2, CleanText: "Breaking: midfield transfer saga ended with club record fee and five year contract for striker"},
		{ArticleID: 3, CleanText: "Update: " + sharedBody},
	}

	marked := nearDuplicates(candidates, nil, 0.9)

	if _, dup := marked[2]; dup {
		t.Errorf("different body with a shared opening must not be flagged, got %v", marked)
	}
	if keeper, dup := marked[3]; !dup || keeper != 1 {
		t.Errorf("same body with a rewritten opening should map to article 1, got %v", marked)
	}
}

func TestNearDuplicatesIsOrderDependent(t *testing.T) {
	t.Parallel()

	forward := []dedupCandidate{
		{ArticleID: 1, CleanText: "A storm hit the northern coast overnight leaving thousands without power"},
		{ArticleID: 2, CleanText: "A storm hit the northern coast overnight leaving thousands without power."},
	}
	reversed := []dedupCandidate{forward[1], forward[0]}

	markedForward := nearDuplicates(forward, nil, 0.9)
	markedReversed := nearDuplicates(reversed, nil, 0.9)

	if markedForward[2] != 1 {
		t.Errorf("forward order: expected 2 -> 1, got %v", markedForward)
	}
	if markedReversed[1] != 2 {
		t.Errorf("reversed order: expected 1 -> 2, got %v", markedReversed)
	}
}

func TestNearDuplicatesSkipsAlreadyMarked(t *testing.T) {
	t.Parallel()

	candidates := []dedupCandidate{
		{ArticleID: 1, CleanText: "Parliament passed the new budget bill in a late night vote"},
		{ArticleID: 2, CleanText: "Parliament passed the new budget bill in a late night vote"},
	}
	already := map[int64]int64{1: 99}

	marked := nearDuplicates(candidates, already, 0.9)

	if _, dup := marked[2]; dup {
		t.Errorf("article 2 has no kept predecessor once 1 is excluded, got %v", marked)
	}
}
