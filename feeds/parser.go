package feeds

import (
	"context"
	"errors"
	"net/http"
	"time"

	"headlines/models"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
)

// ParsedFeed is a retrieved feed before the pipeline normalizes it
type ParsedFeed struct {
	Metadata models.FeedMetadata
	Entries  []models.Entry
}

// FeedParser retrieves and parses the feed document at an address
type FeedParser interface {
	Parse(ctx context.Context, address string) (*ParsedFeed, error)
}

var errEmptyFeed = errors.New("parser returned no feed")

// GofeedParser fetches RSS, Atom and JSON feeds over HTTP using gofeed
type GofeedParser struct {
	parser *gofeed.Parser
}

// NewGofeedParser returns a parser using client for requests. A nil client
// gets one with the given timeout.
func NewGofeedParser(client *http.Client, timeout time.Duration, userAgent string) *GofeedParser {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	return &GofeedParser{parser: parser}
}

// Parse fetches address and converts the RSS, Atom or JSON feed found there
func (g *GofeedParser) Parse(ctx context.Context, address string) (*ParsedFeed, error) {
	feed, err := g.parser.ParseURLWithContext(address, ctx)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, errEmptyFeed
	}
	return convertFeed(feed), nil
}

func convertFeed(feed *gofeed.Feed) *ParsedFeed {
	metadata := models.FeedMetadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
		Updated:     feed.UpdatedParsed,
		Extra:       copyCustom(feed.Custom),
	}
	if feed.Image != nil {
		metadata.Image = feed.Image.URL
	}

	entries := lo.Map(feed.Items, func(item *gofeed.Item, _ int) models.Entry {
		return convertItem(item)
	})

	return &ParsedFeed{
		Metadata: metadata,
		Entries:  entries,
	}
}

func convertItem(item *gofeed.Item) models.Entry {
	// Fall back to the content when a feed only ships full bodies
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	entry := models.Entry{
		Title:     item.Title,
		Summary:   summary,
		Published: item.PublishedParsed,
		Link:      item.Link,
		GUID:      item.GUID,
		Updated:   item.UpdatedParsed,
		Extra:     copyCustom(item.Custom),
	}
	if len(item.Categories) > 0 {
		entry.Categories = append([]string(nil), item.Categories...)
	}

	switch {
	case item.Author != nil:
		entry.Author = item.Author.Name
	case len(item.Authors) > 0 && item.Authors[0] != nil:
		entry.Author = item.Authors[0].Name
	}

	return entry
}

func copyCustom(custom map[string]string) map[string]string {
	if len(custom) == 0 {
		return nil
	}
	return lo.Assign(custom)
}
