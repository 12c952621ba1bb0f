package recommend

import (
	"testing"

	"horse.fit/currents/internal/db"
)

func makeCandidate(topicID int64, category string, score float64, embedding []float64) scoredCandidate {
	c := scoredCandidate{
		Embedding: embedding,
		Outcome:   ScoreOutcome{Score: score},
	}
	c.TopicID = topicID
	if category != "" {
		c.Category = &category
	}
	return c
}

func TestRerankMMRLambdaOneKeepsRelevanceOrder(t *testing.T) {
	t.Parallel()

	candidates := []scoredCandidate{
		makeCandidate(1, "", 0.9, []float64{1, 0}),
		makeCandidate(2, "", 0.8, []float64{1, 0}),
		makeCandidate(3, "", 0.7, []float64{0, 1}),
		makeCandidate(4, "", 0.6, []float64{0, 1}),
	}

	ranked := rerankMMR(candidates, 1, 4)
	for i, candidate := range ranked {
		if candidate.TopicID != candidates[i].TopicID {
			t.Fatalf("lambda=1 must reproduce relevance order, got %d at position %d", candidate.TopicID, i)
		}
	}
}

func TestRerankMMRLambdaZeroPrefersNovelty(t *testing.T) {
	t.Parallel()

	// Candidate 2 is nearly identical to the top pick, candidate 3 is
	// orthogonal to it. With lambda=0 the second selection must be the item
	// least similar to the first.
	candidates := []scoredCandidate{
		makeCandidate(1, "", 0.9, []float64{1, 0}),
		makeCandidate(2, "", 0.8, []float64{0.99, 0.14}),
		makeCandidate(3, "", 0.1, []float64{0, 1}),
	}

	ranked := rerankMMR(candidates, 0, 3)
	if ranked[1].TopicID != 3 {
		t.Fatalf("lambda=0 second pick must be least similar to first, got %d", ranked[1].TopicID)
	}
}

func TestRerankMMRTailKeepsRelevanceOrder(t *testing.T) {
	t.Parallel()

	candidates := []scoredCandidate{
		makeCandidate(1, "", 0.9, []float64{1, 0}),
		makeCandidate(2, "", 0.8, []float64{1, 0}),
		makeCandidate(3, "", 0.7, []float64{0, 1}),
		makeCandidate(4, "", 0.6, []float64{0, 1}),
	}

	ranked := rerankMMR(candidates, 0.5, 2)
	if len(ranked) != 4 {
		t.Fatalf("rerank must keep all candidates, got %d", len(ranked))
	}
	if ranked[2].TopicID != 3 || ranked[3].TopicID != 4 {
		t.Errorf("items beyond the sub-pool must keep relevance order, got %d then %d", ranked[2].TopicID, ranked[3].TopicID)
	}
}

func TestApplyQuotas(t *testing.T) {
	t.Parallel()

	candidates := []scoredCandidate{
		makeCandidate(1, "tech", 0.9, nil),
		makeCandidate(1, "tech", 0.8, nil),
		makeCandidate(2, "tech", 0.7, nil),
		makeCandidate(3, "tech", 0.6, nil),
		makeCandidate(4, "sports", 0.5, nil),
		makeCandidate(5, "sports", 0.4, nil),
	}

	admitted := applyQuotas(candidates, 2, 1, 10)

	perCategory := make(map[string]int)
	perTopic := make(map[int64]int)
	for _, candidate := range admitted {
		perCategory[*candidate.Category]++
		perTopic[candidate.TopicID]++
	}
	for category, count := range perCategory {
		if count > 2 {
			t.Errorf("category %s admitted %d items, cap is 2", category, count)
		}
	}
	for topicID, count := range perTopic {
		if count > 1 {
			t.Errorf("topic %d admitted %d items, cap is 1", topicID, count)
		}
	}
}

func TestApplyQuotasCapsUncategorizedItems(t *testing.T) {
	t.Parallel()

	candidates := make([]scoredCandidate, 0, 6)
	for i := int64(1); i <= 6; i++ {
		candidates = append(candidates, makeCandidate(i, "", 1, nil))
	}

	admitted := applyQuotas(candidates, 2, 1, 10)
	if len(admitted) != 2 {
		t.Fatalf("no-category items share one bucket under the cap, expected 2 admitted, got %d", len(admitted))
	}
}

func TestApplyQuotasStopsAtLimit(t *testing.T) {
	t.Parallel()

	candidates := make([]scoredCandidate, 0, 10)
	for i := int64(1); i <= 10; i++ {
		candidates = append(candidates, makeCandidate(i, "", 1, nil))
	}

	admitted := applyQuotas(candidates, 100, 1, 4)
	if len(admitted) != 4 {
		t.Fatalf("expected 4 admitted items, got %d", len(admitted))
	}
}

func TestHeuristicScore(t *testing.T) {
	t.Parallel()

	fresh := heuristicScore(0.5, 0, 0)
	stale := heuristicScore(0.5, 200, 0)
	if fresh <= stale {
		t.Errorf("fresher item must score higher: fresh=%v stale=%v", fresh, stale)
	}

	popular := heuristicScore(0.5, 0, 100)
	if popular <= fresh {
		t.Errorf("popularity must boost score: popular=%v plain=%v", popular, fresh)
	}

	future := heuristicScore(0.5, -3, 0)
	if future != fresh {
		t.Errorf("negative age must clamp to zero: %v vs %v", future, fresh)
	}
}

func TestScoreCandidateFallbackOutcome(t *testing.T) {
	t.Parallel()

	outcome := scoreCandidate(nil, defaultFeatureContext(), 0.5, 1, 3, testNow())
	if outcome.UsedModel {
		t.Error("nil scorer must report the fallback path")
	}
	if outcome.Score <= 0 {
		t.Errorf("heuristic score = %v", outcome.Score)
	}
}

func TestReasonPrecedence(t *testing.T) {
	t.Parallel()

	prefs := db.Preferences{
		Categories: []string{"tech"},
		Keywords:   []string{"fusion"},
	}
	recent := map[int64]struct{}{7: {}}

	categoryHit := makeCandidate(7, "tech", 0, nil)
	categoryHit.DigestText = "fusion breakthrough"
	if got := reasonFor(categoryHit, prefs, recent); got != "Matches your interest in tech" {
		t.Errorf("category must outrank keyword: %q", got)
	}

	keywordHit := makeCandidate(7, "sports", 0, nil)
	keywordHit.DigestText = "Fusion reactor milestone"
	if got := reasonFor(keywordHit, prefs, recent); got != "Mentions fusion" {
		t.Errorf("keyword must outrank recency: %q", got)
	}

	recentHit := makeCandidate(7, "sports", 0, nil)
	recentHit.DigestText = "nothing matching"
	if got := reasonFor(recentHit, prefs, recent); got != "Similar to topics you read recently" {
		t.Errorf("recent topic reason expected: %q", got)
	}

	fallback := makeCandidate(8, "", 0, nil)
	fallback.DigestText = "nothing matching"
	if got := reasonFor(fallback, prefs, recent); got != "Trending now" {
		t.Errorf("fallback reason expected: %q", got)
	}
}
