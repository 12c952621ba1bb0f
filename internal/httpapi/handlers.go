package httpapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
)

var allowedEventTypes = map[string]struct{}{
	"click": {},
	"save":  {},
	"read":  {},
	"hide":  {},
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "currents",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleFeed(c echo.Context) error {
	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		return fail(c, 400, "user_id query parameter is required", nil)
	}

	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fail(c, 400, "limit must be a positive integer", nil)
		}
		limit = parsed
	}

	items, err := s.feed.GetFeed(c.Request().Context(), userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("feed assembly failed")
		return internalError(c, "Failed to build feed")
	}
	return success(c, map[string]any{
		"user_id": userID,
		"items":   items,
	})
}

func (s *Server) handleTopics(c echo.Context) error {
	limit := 50
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fail(c, 400, "limit must be a positive integer", nil)
		}
		limit = parsed
	}
	includeMerged := c.QueryParam("include_merged") == "true"

	topics, err := s.pool.ListTopics(c.Request().Context(), limit, includeMerged)
	if err != nil {
		s.logger.Error().Err(err).Msg("list topics failed")
		return internalError(c, "Failed to load topics")
	}
	return success(c, map[string]any{
		"items": topics,
	})
}

func (s *Server) handleTopicDetail(c echo.Context) error {
	topicUUID := strings.TrimSpace(c.Param("topic_uuid"))
	if topicUUID == "" {
		return fail(c, 400, "topic_uuid is required", nil)
	}

	detail, found, err := s.pool.GetTopicDetail(c.Request().Context(), topicUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("topic_uuid", topicUUID).Msg("topic detail failed")
		return internalError(c, "Failed to load topic")
	}
	if !found {
		return failNotFound(c, "Topic not found")
	}
	return success(c, detail)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.pool.GetStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

type createEventRequest struct {
	UserID    string `json:"user_id"`
	TopicID   string `json:"topic_id"`
	ItemID    string `json:"item_id"`
	EventType string `json:"event_type"`
}

func (s *Server) handleCreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "Invalid request body", nil)
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.EventType = strings.TrimSpace(req.EventType)
	if req.UserID == "" {
		return fail(c, 400, "user_id is required", nil)
	}
	if _, ok := allowedEventTypes[req.EventType]; !ok {
		return fail(c, 400, "event_type must be one of click, save, read, hide", nil)
	}

	ctx := c.Request().Context()
	event := db.Event{
		UserID:    req.UserID,
		EventType: req.EventType,
		CreatedAt: globaltime.Now(),
	}

	if topicUUID := strings.TrimSpace(req.TopicID); topicUUID != "" {
		topicID, found, err := s.pool.ResolveTopicID(ctx, topicUUID)
		if err != nil {
			s.logger.Error().Err(err).Str("topic_uuid", topicUUID).Msg("resolve topic failed")
			return internalError(c, "Failed to record event")
		}
		if !found {
			return failNotFound(c, "Topic not found")
		}
		event.TopicID = &topicID
	}
	if digestUUID := strings.TrimSpace(req.ItemID); digestUUID != "" {
		digestID, found, err := s.pool.ResolveDigestID(ctx, digestUUID)
		if err != nil {
			s.logger.Error().Err(err).Str("digest_uuid", digestUUID).Msg("resolve digest failed")
			return internalError(c, "Failed to record event")
		}
		if !found {
			return failNotFound(c, "Item not found")
		}
		event.DigestID = &digestID
	}

	if err := s.pool.InsertEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("insert event failed")
		return internalError(c, "Failed to record event")
	}
	return successWithStatus(c, 201, map[string]any{
		"recorded": true,
	})
}

type putPreferencesRequest struct {
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
}

func (s *Server) handlePutPreferences(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return fail(c, 400, "user_id is required", nil)
	}

	var req putPreferencesRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "Invalid request body", nil)
	}

	prefs := db.Preferences{
		UserID:     userID,
		Categories: normalizeTerms(req.Categories),
		Keywords:   normalizeTerms(req.Keywords),
	}
	if err := s.pool.UpsertPreferences(c.Request().Context(), prefs, globaltime.Now()); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("upsert preferences failed")
		return internalError(c, "Failed to save preferences")
	}
	return success(c, prefs)
}

func normalizeTerms(terms []string) []string {
	normalized := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		normalized = append(normalized, term)
	}
	return normalized
}
