package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/currents/internal/config"
	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/embed"
	"horse.fit/currents/internal/feature"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/vec"
)

const (
	candidatePoolFloor   = 60
	candidatePoolFactor  = 3
	recentTopicWindow    = 7 * 24 * time.Hour
	neutralUserInterests = "top news stories of the day"
)

// FeedItem is one served feed entry.
type FeedItem struct {
	TopicID    string    `json:"topic_id"`
	ItemID     string    `json:"item_id"`
	Title      *string   `json:"title"`
	Category   *string   `json:"category"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	Popularity int       `json:"popularity_count"`
	Reason     string    `json:"reason"`
	Score      float64   `json:"score"`
	UsedModel  bool      `json:"used_model"`
}

// FeedService assembles personalized feeds. It is read-only per request and
// safe for concurrent use across users.
type FeedService struct {
	pool     *db.Pool
	embedder embed.Embedder
	scorer   *ScorerContext
	logger   zerolog.Logger

	maxItems       int
	maxPerCategory int
	maxPerTopic    int
	mmrLambda      float64
	mmrMax         int
}

func NewFeedService(pool *db.Pool, cfg *config.Config, logger zerolog.Logger, embedder embed.Embedder, scorer *ScorerContext) *FeedService {
	return &FeedService{
		pool:           pool,
		embedder:       embedder,
		scorer:         scorer,
		logger:         logger,
		maxItems:       cfg.MaxFeedItems,
		maxPerCategory: cfg.MaxPerCategory,
		maxPerTopic:    cfg.MaxPerTopic,
		mmrLambda:      cfg.MMRLambda,
		mmrMax:         cfg.MMRMaxCandidates,
	}
}

// GetFeed returns up to limit ranked, diversified items for the user.
func (s *FeedService) GetFeed(ctx context.Context, userID string, limit int) ([]FeedItem, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("feed service is not initialized")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 || limit > s.maxItems {
		limit = s.maxItems
	}

	now := globaltime.Now()

	prefs, _, err := s.pool.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	userVector, err := s.userVector(ctx, userID, prefs, now)
	if err != nil {
		return nil, err
	}

	engagement, err := s.pool.GetEngagement(ctx, userID, now.Add(-recentTopicWindow))
	if err != nil {
		return nil, err
	}

	literal, err := vec.Literal(userVector)
	if err != nil {
		return nil, fmt.Errorf("encode user vector: %w", err)
	}

	poolSize := max(limit*candidatePoolFactor, candidatePoolFloor)
	rows, err := s.pool.FeedCandidates(ctx, userID, literal, poolSize)
	if err != nil {
		return nil, err
	}

	candidates := s.scoreAll(rows, userVector, prefs, engagement, now)
	sortByScore(candidates)
	candidates = rerankMMR(candidates, s.mmrLambda, s.mmrMax)
	candidates = applyQuotas(candidates, s.maxPerCategory, s.maxPerTopic, limit)

	items := make([]FeedItem, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, FeedItem{
			TopicID:    candidate.TopicUUID,
			ItemID:     candidate.DigestUUID,
			Title:      candidate.Title,
			Category:   candidate.Category,
			Text:       candidate.DigestText,
			CreatedAt:  candidate.CreatedAt,
			Popularity: candidate.PopularityCount,
			Reason:     reasonFor(candidate, prefs, engagement.RecentTopicIDs),
			Score:      candidate.Outcome.Score,
			UsedModel:  candidate.Outcome.UsedModel,
		})
	}
	return items, nil
}

// userVector returns the cached user embedding, bootstrapping one from the
// stored preferences (or a neutral placeholder) when absent.
func (s *FeedService) userVector(ctx context.Context, userID string, prefs db.Preferences, now time.Time) ([]float64, error) {
	literal, found, err := s.pool.GetUserEmbedding(ctx, userID)
	if err != nil {
		return nil, err
	}
	if found {
		vector, parseErr := vec.Parse(literal)
		if parseErr == nil && len(vector) == s.embedder.Dim() {
			return vector, nil
		}
		s.logger.Warn().Str("user_id", userID).Msg("stored user embedding unusable, rebuilding")
	}

	interests := preferencesText(prefs)
	vector, err := s.embedder.Embed(ctx, interests)
	if err != nil {
		return nil, fmt.Errorf("bootstrap user embedding: %w", err)
	}
	vector = vec.Normalize(vector)

	newLiteral, err := vec.Literal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode user embedding: %w", err)
	}
	if err := s.pool.SaveUserEmbedding(ctx, userID, s.embedder.ModelName(), s.embedder.ModelVersion(), s.embedder.Dim(), newLiteral, now); err != nil {
		return nil, err
	}
	return vector, nil
}

func preferencesText(prefs db.Preferences) string {
	parts := make([]string, 0, len(prefs.Categories)+len(prefs.Keywords))
	for _, category := range prefs.Categories {
		if strings.TrimSpace(category) != "" {
			parts = append(parts, strings.TrimSpace(category))
		}
	}
	for _, keyword := range prefs.Keywords {
		if strings.TrimSpace(keyword) != "" {
			parts = append(parts, strings.TrimSpace(keyword))
		}
	}
	if len(parts) == 0 {
		return neutralUserInterests
	}
	return "news about " + strings.Join(parts, ", ")
}

func (s *FeedService) scoreAll(rows []db.FeedCandidate, userVector []float64, prefs db.Preferences, engagement db.Engagement, now time.Time) []scoredCandidate {
	scorer := s.scorer.Current()

	candidates := make([]scoredCandidate, 0, len(rows))
	for _, row := range rows {
		candidate := scoredCandidate{FeedCandidate: row}
		if embedding, err := vec.Parse(row.EmbeddingLiteral); err == nil {
			candidate.Embedding = embedding
		}
		candidate.Similarity = vec.Dot(userVector, candidate.Embedding)

		category := ""
		if row.Category != nil {
			category = *row.Category
		}

		fc := feature.Context{
			UserVector:     userVector,
			ItemVector:     candidate.Embedding,
			ItemCreatedAt:  row.CreatedAt,
			Popularity:     row.PopularityCount,
			TopicClicks:    engagement.TopicClicks[row.TopicID],
			Category:       category,
			UserCategories: prefs.Categories,
			UserKeywords:   prefs.Keywords,
			ItemText:       row.DigestText,
			TopicFirstSeen: row.TopicFirstSeenAt,
			CategoryClicks: engagement.CategoryClicks[category],
		}

		ageHours := now.Sub(row.CreatedAt).Hours()
		candidate.Outcome = scoreCandidate(scorer, fc, candidate.Similarity, ageHours, row.PopularityCount, now)
		candidates = append(candidates, candidate)
	}
	return candidates
}
