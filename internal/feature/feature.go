// Package feature builds the fixed numeric vector consumed by the trained
// ranker and the offline training pipeline. The scorer's feature-name schema
// is checked against Names, so order here is load-bearing.
package feature

import (
	"math"
	"strings"
	"time"

	"horse.fit/currents/internal/vec"
)

// Names lists the feature vector slots in output order.
var Names = []string{
	"similarity",
	"recency_hours",
	"popularity_log",
	"user_topic_clicks",
	"category_match",
	"keyword_overlap",
	"position",
	"topic_age_hours",
	"digest_length",
	"user_category_clicks",
}

// Context carries every input the builder reads. All fields are optional;
// missing data defaults to neutral values.
type Context struct {
	UserVector     []float64
	ItemVector     []float64
	ItemCreatedAt  time.Time
	Popularity     int
	TopicClicks    int
	Category       string
	UserCategories []string
	UserKeywords   []string
	ItemText       string
	Position       int
	TopicFirstSeen time.Time
	CategoryClicks int
}

// Build returns exactly len(Names) values and never fails.
func Build(fc Context, now time.Time) []float64 {
	features := make([]float64, len(Names))

	if len(fc.UserVector) > 0 && len(fc.UserVector) == len(fc.ItemVector) {
		features[0] = vec.Dot(fc.UserVector, fc.ItemVector)
	}
	if !fc.ItemCreatedAt.IsZero() {
		features[1] = hoursSince(fc.ItemCreatedAt, now)
	}
	features[2] = math.Log1p(float64(max(fc.Popularity, 0)))
	features[3] = float64(fc.TopicClicks)
	if categoryMatches(fc.Category, fc.UserCategories) {
		features[4] = 1
	}
	features[5] = float64(keywordHits(fc.ItemText, fc.UserKeywords))
	features[6] = float64(fc.Position)
	if !fc.TopicFirstSeen.IsZero() {
		features[7] = hoursSince(fc.TopicFirstSeen, now)
	}
	features[8] = float64(len(fc.ItemText))
	features[9] = float64(fc.CategoryClicks)

	return features
}

func hoursSince(t, now time.Time) float64 {
	hours := now.Sub(t).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}

func categoryMatches(category string, preferred []string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return false
	}
	for _, p := range preferred {
		if strings.EqualFold(strings.TrimSpace(p), category) {
			return true
		}
	}
	return false
}

func keywordHits(text string, keywords []string) int {
	if text == "" || len(keywords) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	hits := 0
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, keyword) {
			hits++
		}
	}
	return hits
}
