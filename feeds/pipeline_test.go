package feeds_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"headlines/feeds"
	"headlines/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubParser serves canned feeds by address
type stubParser struct {
	feeds map[string]*feeds.ParsedFeed
	errs  map[string]error
	calls []string
}

func (s *stubParser) Parse(ctx context.Context, address string) (*feeds.ParsedFeed, error) {
	s.calls = append(s.calls, address)
	if err, ok := s.errs[address]; ok {
		return nil, err
	}
	feed, ok := s.feeds[address]
	if !ok {
		return nil, fmt.Errorf("no such feed %s", address)
	}
	return feed, nil
}

// blockingParser waits for the context to end
type blockingParser struct{}

func (blockingParser) Parse(ctx context.Context, address string) (*feeds.ParsedFeed, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingSink struct{}

func (failingSink) Open() (io.WriteCloser, error) {
	return nil, errors.New("disk full")
}

const (
	sourceA = "https://a.example.com/rss"
	sourceB = "https://b.example.com/rss"
)

var sources = []models.Source{
	{Name: "A", URL: sourceA},
	{Name: "B", URL: sourceB},
}

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func entry(title string, published *time.Time, summary string) models.Entry {
	return models.Entry{
		Title:     title,
		Summary:   summary,
		Published: published,
		Link:      "https://example.com/" + title,
	}
}

func scenarioParser() *stubParser {
	return &stubParser{
		feeds: map[string]*feeds.ParsedFeed{
			sourceA: {
				Metadata: models.FeedMetadata{Title: "Feed A", Link: "https://a.example.com"},
				Entries: []models.Entry{
					entry("a-jan", date(2024, time.January, 1), "<p>January</p>"),
					entry("a-mar", date(2024, time.March, 1), "March"),
				},
			},
			sourceB: {
				Metadata: models.FeedMetadata{Title: "Feed B", Description: "Second feed"},
				Entries: []models.Entry{
					entry("b-feb", date(2024, time.February, 1), "<p>Breaking nbsp News</p>"),
				},
			},
		},
	}
}

func readLog(t *testing.T, buf *bytes.Buffer) []models.Entry {
	t.Helper()
	var entries []models.Entry
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var e models.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func titles(entries []models.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestIngestSortsAcrossFeedsAndTruncates(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	metadata, entries, err := pipeline.Ingest(context.Background(), sources, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"a-mar", "b-feb"}, titles(entries))
	assert.True(t, entries[0].Published.Equal(*date(2024, time.March, 1)))
	assert.True(t, entries[1].Published.Equal(*date(2024, time.February, 1)))

	require.Len(t, metadata, 2)
	assert.Equal(t, "https://a.example.com", metadata["Feed A"].Link)
	assert.Equal(t, "Second feed", metadata["Feed B"].Description)
}

func TestIngestReturnsEverythingBelowLimit(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	metadata, entries, err := pipeline.Ingest(context.Background(), sources, feeds.DefaultLimit)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].PublishedAt().After(entries[i-1].PublishedAt()),
			"entry %d is newer than entry %d", i, i-1)
	}

	for _, e := range entries {
		_, ok := metadata[e.FeedTitle]
		assert.True(t, ok, "feed title %q has no metadata", e.FeedTitle)
	}
}

func TestIngestZeroLimitKeepsMetadata(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	metadata, entries, err := pipeline.Ingest(context.Background(), sources, 0)
	require.NoError(t, err)

	assert.Empty(t, entries)
	assert.NotNil(t, entries)
	assert.Len(t, metadata, 2)
	// Everything is still logged
	assert.Len(t, readLog(t, &buf), 3)
}

func TestIngestSanitizesSummaries(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	_, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)

	markup := regexp.MustCompile(`<.*?>|nbsp`)
	for _, e := range entries {
		assert.False(t, markup.MatchString(e.Summary), "summary %q still has markup", e.Summary)
	}

	byTitle := map[string]string{}
	for _, e := range entries {
		byTitle[e.Title] = e.Summary
	}
	assert.Equal(t, " Breaking   News ", byTitle["b-feb"])
	assert.Equal(t, " January ", byTitle["a-jan"])
	// Titles are not touched
	assert.Equal(t, "a-mar", entries[0].Title)
}

func TestIngestAssignsUniqueIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	_, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)

	hex10 := regexp.MustCompile(`^[0-9a-f]{10}$`)
	seen := map[string]bool{}
	for _, e := range entries {
		assert.Regexp(t, hex10, e.UUID)
		assert.False(t, seen[e.UUID], "duplicate uuid %s", e.UUID)
		seen[e.UUID] = true
	}
}

func TestIngestRedrawsCollidingIdentifiers(t *testing.T) {
	ids := []string{"aaaaaaaaaa", "aaaaaaaaaa", "bbbbbbbbbb", "aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"}
	next := 0
	newID := func() string {
		id := ids[next]
		next++
		return id
	}

	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{NewID: newID})

	_, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, e := range entries {
		got[e.UUID] = true
	}
	assert.Equal(t, map[string]bool{"aaaaaaaaaa": true, "bbbbbbbbbb": true, "cccccccccc": true}, got)
}

func TestIngestWritesLogInProcessingOrder(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("{\"title\":\"from a previous run\"}\n")
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	_, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)

	logged := readLog(t, &buf)
	assert.Equal(t, []string{"a-jan", "a-mar", "b-feb"}, titles(logged))
	assert.Equal(t, "Feed A", logged[0].FeedTitle)
	assert.Equal(t, "Feed B", logged[2].FeedTitle)
	assert.Equal(t, " Breaking   News ", logged[2].Summary)

	// The logged records are the returned entries
	byID := map[string]models.Entry{}
	for _, e := range logged {
		byID[e.UUID] = e
	}
	for _, e := range entries {
		assert.Equal(t, e.Title, byID[e.UUID].Title)
	}
}

func TestIngestFetchFailureAbortsAndLeavesPartialLog(t *testing.T) {
	parser := scenarioParser()
	parser.errs = map[string]error{sourceB: errors.New("connection refused")}

	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(parser, feeds.WriterLog{W: &buf}, feeds.Options{})

	metadata, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.Error(t, err)
	assert.Nil(t, metadata)
	assert.Nil(t, entries)

	var fetchErr *feeds.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, sourceB, fetchErr.Source)
	assert.EqualError(t, fetchErr.Err, "connection refused")

	logged := readLog(t, &buf)
	assert.Equal(t, []string{"a-jan", "a-mar"}, titles(logged))
	for _, e := range logged {
		assert.Equal(t, "Feed A", e.FeedTitle)
	}
}

func TestIngestStopsAtFirstFailure(t *testing.T) {
	parser := scenarioParser()
	parser.errs = map[string]error{sourceA: errors.New("timeout")}

	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(parser, feeds.WriterLog{W: &buf}, feeds.Options{})

	_, _, err := pipeline.Ingest(context.Background(), sources, 10)
	require.Error(t, err)
	assert.Equal(t, []string{sourceA}, parser.calls)
	assert.Empty(t, buf.String())
}

func TestIngestFetchTimeout(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(blockingParser{}, feeds.WriterLog{W: &buf}, feeds.Options{
		FetchTimeout: 20 * time.Millisecond,
	})

	_, _, err := pipeline.Ingest(context.Background(), sources, 10)
	require.Error(t, err)

	var fetchErr *feeds.FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIngestMissingPublished(t *testing.T) {
	undated := func() *stubParser {
		parser := scenarioParser()
		parser.feeds[sourceB].Entries = append(
			[]models.Entry{entry("b-undated", nil, "no date")},
			parser.feeds[sourceB].Entries...,
		)
		return parser
	}

	t.Run("error policy fails at sort time", func(t *testing.T) {
		var buf bytes.Buffer
		pipeline := feeds.NewPipeline(undated(), feeds.WriterLog{W: &buf}, feeds.Options{
			MissingDates: feeds.MissingDateError,
		})

		_, _, err := pipeline.Ingest(context.Background(), sources, 10)
		var malformed *feeds.MalformedEntryError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "b-undated", malformed.Title)
		assert.Equal(t, "Feed B", malformed.FeedTitle)

		// The log was completed before sorting
		assert.Len(t, readLog(t, &buf), 4)
	})

	t.Run("earliest policy sorts undated entries last", func(t *testing.T) {
		var buf bytes.Buffer
		pipeline := feeds.NewPipeline(undated(), feeds.WriterLog{W: &buf}, feeds.Options{
			MissingDates: feeds.MissingDateEarliest,
		})

		_, entries, err := pipeline.Ingest(context.Background(), sources, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"a-mar", "b-feb", "a-jan", "b-undated"}, titles(entries))
	})
}

func TestIngestSortIsStable(t *testing.T) {
	same := date(2024, time.May, 5)
	parser := &stubParser{
		feeds: map[string]*feeds.ParsedFeed{
			sourceA: {
				Metadata: models.FeedMetadata{Title: "Feed A"},
				Entries:  []models.Entry{entry("first", same, ""), entry("second", same, "")},
			},
			sourceB: {
				Metadata: models.FeedMetadata{Title: "Feed B"},
				Entries:  []models.Entry{entry("third", same, "")},
			},
		},
	}

	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(parser, feeds.WriterLog{W: &buf}, feeds.Options{})

	_, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, titles(entries))
}

func TestIngestTitleCollisionOverwritesMetadata(t *testing.T) {
	parser := scenarioParser()
	parser.feeds[sourceB].Metadata.Title = "Feed A"

	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(parser, feeds.WriterLog{W: &buf}, feeds.Options{})

	metadata, entries, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)

	require.Len(t, metadata, 1)
	assert.Equal(t, "Second feed", metadata["Feed A"].Description)
	for _, e := range entries {
		assert.Equal(t, "Feed A", e.FeedTitle)
	}
}

func TestIngestValidatesArguments(t *testing.T) {
	var buf bytes.Buffer
	pipeline := feeds.NewPipeline(scenarioParser(), feeds.WriterLog{W: &buf}, feeds.Options{})

	_, _, err := pipeline.Ingest(context.Background(), sources, 10)
	require.NoError(t, err)
	previous := buf.String()
	require.NotEmpty(t, previous)

	_, _, err = pipeline.Ingest(context.Background(), nil, 10)
	assert.ErrorIs(t, err, feeds.ErrNoSources)

	_, _, err = pipeline.Ingest(context.Background(), sources, -1)
	assert.ErrorIs(t, err, feeds.ErrInvalidLimit)

	// Rejected calls never open the log
	assert.Equal(t, previous, buf.String())
}

func TestIngestLogOpenFailure(t *testing.T) {
	parser := scenarioParser()
	pipeline := feeds.NewPipeline(parser, failingSink{}, feeds.Options{})

	_, _, err := pipeline.Ingest(context.Background(), sources, 10)
	var logErr *feeds.LogError
	require.ErrorAs(t, err, &logErr)
	assert.Equal(t, "open", logErr.Op)
	assert.Empty(t, parser.calls)
}

func TestParseMissingDatePolicy(t *testing.T) {
	policy, err := feeds.ParseMissingDatePolicy("earliest")
	require.NoError(t, err)
	assert.Equal(t, feeds.MissingDateEarliest, policy)

	policy, err = feeds.ParseMissingDatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, feeds.MissingDateError, policy)
	assert.Equal(t, "error", policy.String())

	_, err = feeds.ParseMissingDatePolicy("skip")
	assert.Error(t, err)
}
