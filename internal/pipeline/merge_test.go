package pipeline

import "testing"

func TestResolveMergesScenario(t *testing.T) {
	t.Parallel()

	// Two same-category topics with cosine similarity ~0.95 against a merge
	// threshold of 0.94: they merge, the higher-popularity one survives and
	// carries the summed popularity.
	topics := []*mergeTopic{
		{TopicID: 1, Category: strPtr("tech"), Centroid: []float64{1, 0}, PopularityCount: 3},
		{TopicID: 2, Category: strPtr("tech"), Centroid: []float64{0.95, 0.3122499}, PopularityCount: 8},
	}

	pairs := resolveMerges(topics, 0.94, 2)

	if len(pairs) != 1 {
		t.Fatalf("expected 1 merge, got %d", len(pairs))
	}
	primary := topics[pairs[0].PrimaryIdx]
	secondary := topics[pairs[0].SecondaryIdx]

	if primary.TopicID != 2 {
		t.Errorf("higher-popularity topic must be primary, got %d", primary.TopicID)
	}
	if primary.PopularityCount != 11 {
		t.Errorf("primary popularity = %d, want pre-merge sum 11", primary.PopularityCount)
	}
	if secondary.MergedInto == nil || *secondary.MergedInto != 2 {
		t.Errorf("secondary must be tombstoned into 2, got %v", secondary.MergedInto)
	}
}

func TestResolveMergesIdempotent(t *testing.T) {
	t.Parallel()

	topics := []*mergeTopic{
		{TopicID: 1, Centroid: []float64{1, 0}, PopularityCount: 5},
		{TopicID: 2, Centroid: []float64{1, 0}, PopularityCount: 2},
	}

	first := resolveMerges(topics, 0.94, 2)
	if len(first) != 1 {
		t.Fatalf("first run: expected 1 merge, got %d", len(first))
	}

	// Second run over the stable post-merge state: the tombstoned topic is
	// excluded up front, so nothing merges.
	second := resolveMerges(topics, 0.94, 2)
	if len(second) != 0 {
		t.Fatalf("second run must be a no-op, got %d merges", len(second))
	}
}

func TestResolveMergesCategoryConflict(t *testing.T) {
	t.Parallel()

	topics := []*mergeTopic{
		{TopicID: 1, Category: strPtr("tech"), Centroid: []float64{1, 0}},
		{TopicID: 2, Category: strPtr("sports"), Centroid: []float64{1, 0}},
	}

	if pairs := resolveMerges(topics, 0.9, 2); len(pairs) != 0 {
		t.Fatalf("both-set different categories must not merge, got %d", len(pairs))
	}
}

func TestResolveMergesUncategorizedTopicCanMerge(t *testing.T) {
	t.Parallel()

	topics := []*mergeTopic{
		{TopicID: 1, Category: strPtr("tech"), Centroid: []float64{1, 0}, PopularityCount: 5},
		{TopicID: 2, Centroid: []float64{1, 0}, PopularityCount: 2},
	}

	pairs := resolveMerges(topics, 0.94, 2)
	if len(pairs) != 1 {
		t.Fatalf("half-set categories are not a conflict, expected 1 merge, got %d", len(pairs))
	}
	if topics[pairs[0].PrimaryIdx].TopicID != 1 {
		t.Errorf("higher-popularity categorized topic should be primary, got topic %d", topics[pairs[0].PrimaryIdx].TopicID)
	}
	if topics[1].MergedInto == nil || *topics[1].MergedInto != 1 {
		t.Errorf("uncategorized topic should be tombstoned into 1, got %v", topics[1].MergedInto)
	}
}

func TestMergeCompatible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		left  *string
		right *string
		want  bool
	}{
		{"both unset", nil, nil, true},
		{"left unset", nil, strPtr("tech"), true},
		{"right unset", strPtr("tech"), nil, true},
		{"empty counts as unset", strPtr(""), strPtr("tech"), true},
		{"both equal", strPtr("tech"), strPtr("tech"), true},
		{"both set different", strPtr("tech"), strPtr("sports"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := mergeCompatible(tc.left, tc.right); got != tc.want {
				t.Errorf("mergeCompatible(%v, %v) = %v, want %v", tc.left, tc.right, got, tc.want)
			}
		})
	}
}

func TestResolveMergesTieKeepsEarlier(t *testing.T) {
	t.Parallel()

	topics := []*mergeTopic{
		{TopicID: 7, Centroid: []float64{0, 1}, PopularityCount: 4},
		{TopicID: 9, Centroid: []float64{0, 1}, PopularityCount: 4},
	}

	pairs := resolveMerges(topics, 0.94, 2)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 merge, got %d", len(pairs))
	}
	if topics[pairs[0].PrimaryIdx].TopicID != 7 {
		t.Errorf("popularity tie must keep earlier-enumerated topic, primary = %d", topics[pairs[0].PrimaryIdx].TopicID)
	}
}

func TestResolveMergesSkipsBadCentroids(t *testing.T) {
	t.Parallel()

	topics := []*mergeTopic{
		{TopicID: 1, Centroid: []float64{1}},
		{TopicID: 2, Centroid: []float64{1, 0}},
		{TopicID: 3, Centroid: nil},
	}

	if pairs := resolveMerges(topics, 0.5, 2); len(pairs) != 0 {
		t.Fatalf("malformed centroids must be skipped, got %d merges", len(pairs))
	}
}

func TestResolveMergesBelowThreshold(t *testing.T) {
	t.Parallel()

	topics := []*mergeTopic{
		{TopicID: 1, Centroid: []float64{1, 0}},
		{TopicID: 2, Centroid: []float64{0, 1}},
	}

	if pairs := resolveMerges(topics, 0.94, 2); len(pairs) != 0 {
		t.Fatalf("orthogonal topics must not merge, got %d", len(pairs))
	}
}
