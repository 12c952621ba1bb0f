// Package summarize generates short topic digests with Gemini, with a
// deterministic mock for offline runs and tests.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"horse.fit/currents/internal/config"
)

const (
	PromptVersion = "v1"

	maxPromptChars   = 6000
	maxDigestArticle = 5
)

// ArticleInput is one member article passed to the summarizer.
type ArticleInput struct {
	Title string
	Text  string
}

// Summarizer produces a digest text for a topic from its member articles.
type Summarizer interface {
	Summarize(ctx context.Context, topicTitle string, articles []ArticleInput) (string, error)
	Model() string
}

// NewFromConfig returns the mock summarizer when MOCK_LLM is set or no API
// key is configured, otherwise the Gemini-backed one.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Summarizer, error) {
	if cfg.MockLLM || strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return NewMock(), nil
	}
	return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
}

type geminiSummarizer struct {
	client *genai.Client
	model  string
}

// NewGemini builds the Gemini-backed summarizer.
func NewGemini(ctx context.Context, apiKey, model string) (Summarizer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiSummarizer{client: client, model: model}, nil
}

func (g *geminiSummarizer) Model() string { return g.model }

func (g *geminiSummarizer) Summarize(ctx context.Context, topicTitle string, articles []ArticleInput) (string, error) {
	prompt := buildPrompt(topicTitle, articles)

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned empty digest")
	}
	return text, nil
}

func buildPrompt(topicTitle string, articles []ArticleInput) string {
	var b strings.Builder
	b.WriteString("Write a neutral, factual news digest of at most 120 words covering the story below.\n")
	b.WriteString("Do not use introductory phrases, do not invent facts, do not address the reader.\n\n")
	if strings.TrimSpace(topicTitle) != "" {
		fmt.Fprintf(&b, "STORY: %s\n\n", topicTitle)
	}

	for i, article := range articles {
		if i >= maxDigestArticle {
			break
		}
		fmt.Fprintf(&b, "ARTICLE %d: %s\n%s\n\n", i+1, article.Title, truncateRunes(article.Text, maxPromptChars/maxDigestArticle))
	}
	return b.String()
}

func truncateRunes(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	trimmed := string(runes[:limit])
	if idx := strings.LastIndex(trimmed, ". "); idx > limit/4 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

type mockSummarizer struct{}

// NewMock returns a summarizer that concatenates article titles. Determinism
// makes it usable in tests and local pipelines.
func NewMock() Summarizer {
	return mockSummarizer{}
}

func (mockSummarizer) Model() string { return "mock" }

func (mockSummarizer) Summarize(_ context.Context, topicTitle string, articles []ArticleInput) (string, error) {
	titles := make([]string, 0, len(articles))
	for _, article := range articles {
		if title := strings.TrimSpace(article.Title); title != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) == 0 && strings.TrimSpace(topicTitle) != "" {
		titles = append(titles, strings.TrimSpace(topicTitle))
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("no content to digest")
	}
	return strings.Join(titles, ". ") + ".", nil
}
