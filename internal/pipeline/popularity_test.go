package pipeline

import (
	"strings"
	"testing"
)

func TestPopularityRecountUsesAssignmentsOnly(t *testing.T) {
	t.Parallel()

	// popularity_count = articles ever assigned. Engagement events carry
	// ranking signal elsewhere but must never inflate this counter.
	if !strings.Contains(recomputePopularityQuery, "news.topic_articles") {
		t.Error("recount must derive totals from assignment edges")
	}
	if strings.Contains(recomputePopularityQuery, "news.events") {
		t.Error("recount must not read the event log")
	}
}
