package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>First story</title>
      <link>https://example.com/a?utm_source=rss</link>
      <description>Short summary A</description>
      <category>Tech</category>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>No link story</title>
      <description>Should be dropped</description>
    </item>
    <item>
      <title>Second story</title>
      <link>https://example.com/b</link>
      <description>Short summary B</description>
    </item>
  </channel>
</rss>`

func TestRSSFetcher(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	fetcher := NewRSSFetcher("currents-test/1.0", 2*time.Second)
	items, err := fetcher.Fetch(context.Background(), server.URL, 0)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items (linkless dropped), got %d", len(items))
	}
	if items[0].Title != "First story" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].PublishedAt == nil || items[0].PublishedAt.Year() != 2006 {
		t.Errorf("published_at not parsed: %v", items[0].PublishedAt)
	}
	if len(items[0].Categories) != 1 || items[0].Categories[0] != "Tech" {
		t.Errorf("categories = %v", items[0].Categories)
	}
	if items[1].PublishedAt != nil {
		t.Errorf("expected nil published_at for undated item, got %v", items[1].PublishedAt)
	}
}

func TestRSSFetcherMaxItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	fetcher := NewRSSFetcher("", 2*time.Second)
	items, err := fetcher.Fetch(context.Background(), server.URL, 1)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected max_items cap of 1, got %d", len(items))
	}
}
