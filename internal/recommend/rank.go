package recommend

import (
	"math"
	"sort"
	"strings"
	"time"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/feature"
	"horse.fit/currents/internal/vec"
)

const recencyHalfLifeHours = 48.0

// ScoreOutcome reports one candidate's score and which scoring path
// produced it, so callers can tell the model apart from the fallback.
type ScoreOutcome struct {
	Score     float64
	UsedModel bool
}

type scoredCandidate struct {
	db.FeedCandidate
	Embedding  []float64
	Similarity float64
	Outcome    ScoreOutcome
}

// heuristicScore is the fallback when no compatible model is loaded:
// similarity plus an exponential recency decay with a ~48h half-life plus a
// log-scaled popularity boost.
func heuristicScore(similarity float64, ageHours float64, popularity int) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	recency := math.Exp(-ageHours / recencyHalfLifeHours)
	boost := math.Log1p(float64(max(popularity, 0))) / 5
	return similarity + recency + boost
}

// scoreCandidate runs the trained scorer when available, the heuristic
// otherwise.
func scoreCandidate(scorer *Scorer, fc feature.Context, similarity float64, ageHours float64, popularity int, now time.Time) ScoreOutcome {
	if scorer != nil {
		return ScoreOutcome{
			Score:     scorer.Probability(feature.Build(fc, now)),
			UsedModel: true,
		}
	}
	return ScoreOutcome{Score: heuristicScore(similarity, ageHours, popularity)}
}

// rerankMMR applies Maximal Marginal Relevance over the top maxCandidates
// of the relevance-sorted input: repeatedly pick the remaining item
// maximizing lambda*relevance - (1-lambda)*maxSimilarityToSelected. Items
// beyond the sub-pool keep their relevance order, appended after the
// re-ranked prefix.
func rerankMMR(candidates []scoredCandidate, lambda float64, maxCandidates int) []scoredCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	poolSize := len(candidates)
	if maxCandidates > 0 && maxCandidates < poolSize {
		poolSize = maxCandidates
	}

	pool := append([]scoredCandidate(nil), candidates[:poolSize]...)
	tail := candidates[poolSize:]

	selected := make([]scoredCandidate, 0, poolSize)
	for len(pool) > 0 {
		bestIdx := 0
		bestValue := math.Inf(-1)
		for i, candidate := range pool {
			penalty := 0.0
			for _, chosen := range selected {
				if sim := vec.Dot(candidate.Embedding, chosen.Embedding); sim > penalty {
					penalty = sim
				}
			}
			value := lambda*candidate.Outcome.Score - (1-lambda)*penalty
			if value > bestValue {
				bestIdx = i
				bestValue = value
			}
		}
		selected = append(selected, pool[bestIdx])
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	return append(selected, tail...)
}

// applyQuotas walks the ranked list admitting items until the per-category
// and per-topic caps or the feed limit stop them. Items without a category
// share one "uncategorized" bucket under the same cap.
func applyQuotas(candidates []scoredCandidate, maxPerCategory, maxPerTopic, limit int) []scoredCandidate {
	perCategory := make(map[string]int)
	perTopic := make(map[int64]int)

	admitted := make([]scoredCandidate, 0, limit)
	for _, candidate := range candidates {
		if len(admitted) >= limit {
			break
		}
		category := ""
		if candidate.Category != nil {
			category = *candidate.Category
		}
		if perCategory[category] >= maxPerCategory {
			continue
		}
		if perTopic[candidate.TopicID] >= maxPerTopic {
			continue
		}
		perCategory[category]++
		perTopic[candidate.TopicID]++
		admitted = append(admitted, candidate)
	}
	return admitted
}

// sortByScore orders candidates descending by score, stable so equal scores
// keep retrieval order.
func sortByScore(candidates []scoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Outcome.Score > candidates[j].Outcome.Score
	})
}

// reasonFor builds the display reason with fixed precedence: category match,
// then keyword match, then recent-topic affinity, then the trending
// fallback.
func reasonFor(candidate scoredCandidate, prefs db.Preferences, recentTopics map[int64]struct{}) string {
	if candidate.Category != nil {
		for _, preferred := range prefs.Categories {
			if equalsFold(preferred, *candidate.Category) {
				return "Matches your interest in " + *candidate.Category
			}
		}
	}
	for _, keyword := range prefs.Keywords {
		if keyword != "" && containsFold(candidate.DigestText, keyword) {
			return "Mentions " + keyword
		}
	}
	if _, recent := recentTopics[candidate.TopicID]; recent {
		return "Similar to topics you read recently"
	}
	return "Trending now"
}

func equalsFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func containsFold(text, needle string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(needle)))
}
