package models

import "time"

// Source is a feed address taken from configuration
type Source struct {
	Name string `json:"name" toml:"name"`
	URL  string `json:"url" toml:"url"`
}

// FeedMetadata holds the feed-level fields of a parsed feed. Title is the
// key used in the ingestion result; everything else is passed through.
type FeedMetadata struct {
	Title       string            `json:"title"`
	Link        string            `json:"link,omitempty"`
	Description string            `json:"description,omitempty"`
	Language    string            `json:"language,omitempty"`
	Updated     *time.Time        `json:"updated,omitempty"`
	Image       string            `json:"image,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Entry is one article from a feed, normalized for display and persistence
type Entry struct {
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Published *time.Time `json:"published"`
	Link      string     `json:"link"`
	FeedTitle string     `json:"feed_title"`
	UUID      string     `json:"uuid"`

	// Optional fields carried over from the source document
	GUID       string     `json:"guid,omitempty"`
	Author     string     `json:"author,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Updated    *time.Time `json:"updated,omitempty"`

	// Source-specific custom elements
	Extra map[string]string `json:"extra,omitempty"`
}

// PublishedAt returns the publication time, or the zero time when the
// entry has none.
func (e Entry) PublishedAt() time.Time {
	if e.Published == nil {
		return time.Time{}
	}
	return *e.Published
}

// HasPublished reports whether the entry carries a publication time
func (e Entry) HasPublished() bool {
	return e.Published != nil && !e.Published.IsZero()
}

// FeedPage is the result of one ingestion run as served by the JSON endpoint
type FeedPage struct {
	Feeds   map[string]FeedMetadata `json:"feeds"`
	Entries []Entry                 `json:"entries"`
}

// HomeMessage is the placeholder content of the home page
type HomeMessage struct {
	Title string `json:"title" toml:"title"`
	Text  string `json:"text" toml:"text"`
}
