package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedItem is the normalized shape of one RSS/Atom entry.
type FeedItem struct {
	Title       string
	Link        string
	Author      string
	Summary     string
	Content     string
	Categories  []string
	PublishedAt *time.Time
}

// FeedFetcher retrieves feed items for a source. Implemented by rssFetcher
// and stubbed in tests.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string, maxItems int) ([]FeedItem, error)
}

type rssFetcher struct {
	parser *gofeed.Parser
}

// NewRSSFetcher builds the gofeed-backed fetcher.
func NewRSSFetcher(userAgent string, timeout time.Duration) FeedFetcher {
	parser := gofeed.NewParser()
	if strings.TrimSpace(userAgent) != "" {
		parser.UserAgent = userAgent
	}
	if timeout > 0 {
		parser.Client = &http.Client{Timeout: timeout}
	}
	return &rssFetcher{parser: parser}
}

func (f *rssFetcher) Fetch(ctx context.Context, feedURL string, maxItems int) ([]FeedItem, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if maxItems > 0 && len(items) >= maxItems {
			break
		}
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}

		normalized := FeedItem{
			Title:      strings.TrimSpace(item.Title),
			Link:       strings.TrimSpace(item.Link),
			Summary:    strings.TrimSpace(item.Description),
			Content:    strings.TrimSpace(item.Content),
			Categories: item.Categories,
		}
		if item.Author != nil {
			normalized.Author = strings.TrimSpace(item.Author.Name)
		}
		if item.PublishedParsed != nil {
			published := item.PublishedParsed.UTC()
			normalized.PublishedAt = &published
		} else if item.UpdatedParsed != nil {
			updated := item.UpdatedParsed.UTC()
			normalized.PublishedAt = &updated
		}
		items = append(items, normalized)
	}
	return items, nil
}
