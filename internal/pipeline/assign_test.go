package pipeline

import (
	"math"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestCategoryCompatible(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b *string
		want bool
	}{
		{"both unset", nil, nil, true},
		{"both empty", strPtr(""), strPtr(""), true},
		{"both equal", strPtr("tech"), strPtr("tech"), true},
		{"different", strPtr("tech"), strPtr("sports"), false},
		{"one unset", strPtr("tech"), nil, false},
		{"one empty", strPtr(""), strPtr("tech"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := categoryCompatible(tc.a, tc.b); got != tc.want {
				t.Errorf("categoryCompatible(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestShouldAssignBoundaryInclusive(t *testing.T) {
	t.Parallel()

	cases := []struct {
		similarity float64
		threshold  float64
		want       bool
	}{
		{0.88, 0.88, true},
		{0.8800001, 0.88, true},
		{0.8799999, 0.88, false},
		{1, 0.88, true},
		{-1, 0.88, false},
	}

	for _, tc := range cases {
		if got := shouldAssign(tc.similarity, tc.threshold); got != tc.want {
			t.Errorf("shouldAssign(%v, %v) = %v, want %v", tc.similarity, tc.threshold, got, tc.want)
		}
	}
}

func TestBestTopicFirstEncounteredWinsTies(t *testing.T) {
	t.Parallel()

	topics := []*topicState{
		{TopicID: 10, Centroid: []float64{1, 0}},
		{TopicID: 20, Centroid: []float64{1, 0}},
	}
	candidate := assignCandidate{Embedding: []float64{1, 0}}

	idx, _, found := bestTopic(topics, candidate, 2)
	if !found || topics[idx].TopicID != 10 {
		t.Errorf("tie must keep first enumerated topic, got idx=%d found=%v", idx, found)
	}
}

func TestBestTopicSkipsBadCentroidsAndCategories(t *testing.T) {
	t.Parallel()

	topics := []*topicState{
		{TopicID: 1, Centroid: nil},
		{TopicID: 2, Centroid: []float64{1}},
		{TopicID: 3, Category: strPtr("sports"), Centroid: []float64{1, 0}},
		{TopicID: 4, Category: strPtr("tech"), Centroid: []float64{0.9, 0.1}},
	}
	candidate := assignCandidate{Category: strPtr("tech"), Embedding: []float64{1, 0}}

	idx, _, found := bestTopic(topics, candidate, 2)
	if !found || topics[idx].TopicID != 4 {
		t.Errorf("expected topic 4, got idx=%d found=%v", idx, found)
	}
}

func TestBestTopicNoComparableTopics(t *testing.T) {
	t.Parallel()

	topics := []*topicState{
		{TopicID: 1, Centroid: nil},
	}
	candidate := assignCandidate{Embedding: []float64{1, 0}}

	if _, _, found := bestTopic(topics, candidate, 2); found {
		t.Error("expected no comparable topic")
	}
}

func TestAbsorbRunningMean(t *testing.T) {
	t.Parallel()

	topic := &topicState{TopicID: 1}
	topic.absorb([]float64{1, 0})
	if topic.ArticleCount != 1 || topic.Centroid[0] != 1 {
		t.Fatalf("first absorb should copy the embedding, got %v", topic.Centroid)
	}

	topic.absorb([]float64{0, 1})
	if topic.ArticleCount != 2 {
		t.Fatalf("count = %d, want 2", topic.ArticleCount)
	}
	if math.Abs(topic.Centroid[0]-0.5) > 1e-9 || math.Abs(topic.Centroid[1]-0.5) > 1e-9 {
		t.Errorf("centroid after two absorbs = %v, want [0.5 0.5]", topic.Centroid)
	}

	topic.absorb([]float64{0, 1})
	want := []float64{1.0 / 3.0, 2.0 / 3.0}
	for i := range want {
		if math.Abs(topic.Centroid[i]-want[i]) > 1e-9 {
			t.Errorf("centroid[%d] = %v, want %v", i, topic.Centroid[i], want[i])
		}
	}
	if topic.newAssignments() != 3 {
		t.Errorf("newAssignments = %d, want 3", topic.newAssignments())
	}
}

func TestInferCategory(t *testing.T) {
	t.Parallel()

	own := assignCandidate{Category: strPtr("health"), Title: "Startup funding news"}
	if got := inferCategory(own); got == nil || *got != "health" {
		t.Errorf("own category must win, got %v", got)
	}

	hinted := assignCandidate{Title: "Election results expected tonight"}
	if got := inferCategory(hinted); got == nil || *got != "politics" {
		t.Errorf("hint lookup failed, got %v", got)
	}

	none := assignCandidate{Title: "Quiet afternoon in the village"}
	if got := inferCategory(none); got != nil {
		t.Errorf("expected nil category, got %q", *got)
	}
}

func TestTopicTitleFallsBackToFirstSentence(t *testing.T) {
	t.Parallel()

	withTitle := assignCandidate{Title: "Headline", CleanText: "Body text here."}
	if got := topicTitle(withTitle); got != "Headline" {
		t.Errorf("topicTitle = %q", got)
	}

	noTitle := assignCandidate{CleanText: "First sentence. Second sentence."}
	if got := topicTitle(noTitle); got != "First sentence" {
		t.Errorf("topicTitle fallback = %q", got)
	}
}
