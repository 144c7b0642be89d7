// Package feeds retrieves feeds, normalizes their entries and keeps the
// entry log that every ingestion run leaves behind.
package feeds

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"headlines/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// DefaultLimit is the number of entries a run returns unless told otherwise
const DefaultLimit = 20

// MissingDatePolicy decides how entries without a publication date are sorted
type MissingDatePolicy int

const (
	// MissingDateError fails the run with a MalformedEntryError
	MissingDateError MissingDatePolicy = iota
	// MissingDateEarliest treats a missing date as the earliest possible time
	MissingDateEarliest
)

// ParseMissingDatePolicy maps a configuration value to a policy. Empty means error.
func ParseMissingDatePolicy(s string) (MissingDatePolicy, error) {
	switch s {
	case "", "error":
		return MissingDateError, nil
	case "earliest":
		return MissingDateEarliest, nil
	default:
		return MissingDateError, fmt.Errorf("unknown missing date policy %q", s)
	}
}

func (p MissingDatePolicy) String() string {
	if p == MissingDateEarliest {
		return "earliest"
	}
	return "error"
}

// Options tune a Pipeline. The zero value is usable.
type Options struct {
	// Upper bound for fetching and parsing a single source. Zero disables it.
	FetchTimeout time.Duration

	MissingDates MissingDatePolicy

	// Generates entry identifiers, defaults to 10 hex characters of a random UUID
	NewID func() string
}

// Pipeline runs ingestion: fetch every source in order, normalize the
// entries, log them, then return the most recent ones.
type Pipeline struct {
	parser FeedParser
	sink   LogSink
	opts   Options
}

// NewPipeline returns a pipeline reading feeds with parser and logging entries to sink
func NewPipeline(parser FeedParser, sink LogSink, opts Options) *Pipeline {
	if opts.NewID == nil {
		opts.NewID = newEntryID
	}
	return &Pipeline{
		parser: parser,
		sink:   sink,
		opts:   opts,
	}
}

// Ingest fetches all sources and returns the metadata of every feed keyed by
// title together with the limit most recent entries, newest first.
//
// The entry log is truncated when the run starts and holds every entry in
// processing order once it ends. A failure part way through leaves the
// entries written so far in the log.
func (p *Pipeline) Ingest(ctx context.Context, sources []models.Source, limit int) (map[string]models.FeedMetadata, []models.Entry, error) {
	start := time.Now()

	feeds, entries, err := p.ingest(ctx, sources, limit)

	ingestRuns.WithLabelValues(runResult(err)).Inc()
	fields := log.Fields{
		"sources":  len(sources),
		"duration": time.Since(start),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Ingestion failed")
		return nil, nil, err
	}
	fields["feeds"] = len(feeds)
	fields["entries"] = len(entries)
	log.WithFields(fields).Info("Ingestion finished")

	return feeds, entries, nil
}

func (p *Pipeline) ingest(ctx context.Context, sources []models.Source, limit int) (map[string]models.FeedMetadata, []models.Entry, error) {
	// Rejected arguments leave the previous log in place
	if len(sources) == 0 {
		return nil, nil, ErrNoSources
	}
	if limit < 0 {
		return nil, nil, ErrInvalidLimit
	}

	feeds, entries, err := p.collect(ctx, sources)
	if err != nil {
		return nil, nil, err
	}

	if err := sortEntries(entries, p.opts.MissingDates); err != nil {
		return nil, nil, err
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return feeds, entries, nil
}

// collect owns the entry log for the duration of the fetch loop. The log is
// flushed and closed on every return path.
func (p *Pipeline) collect(ctx context.Context, sources []models.Source) (feeds map[string]models.FeedMetadata, entries []models.Entry, err error) {
	out, err := p.sink.Open()
	if err != nil {
		return nil, nil, &LogError{Op: "open", Err: err}
	}
	writer := bufio.NewWriter(out)
	defer func() {
		flushErr := writer.Flush()
		closeErr := out.Close()
		if err != nil {
			return
		}
		if flushErr != nil {
			feeds, entries, err = nil, nil, &LogError{Op: "write", Err: flushErr}
		} else if closeErr != nil {
			feeds, entries, err = nil, nil, &LogError{Op: "close", Err: closeErr}
		}
	}()

	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)

	feeds = make(map[string]models.FeedMetadata, len(sources))
	entries = make([]models.Entry, 0)
	ids := make(map[string]struct{})

	for _, source := range sources {
		parsed, fetchErr := p.fetch(ctx, source)
		if fetchErr != nil {
			return nil, nil, fetchErr
		}

		title := parsed.Metadata.Title
		feeds[title] = parsed.Metadata

		for _, entry := range parsed.Entries {
			entry.FeedTitle = title
			entry.UUID = p.uniqueID(ids)
			entry.Summary = StripMarkup(entry.Summary)

			if writeErr := encoder.Encode(entry); writeErr != nil {
				return nil, nil, &LogError{Op: "write", Err: writeErr}
			}
			entriesIngested.Inc()
			entries = append(entries, entry)
		}
	}

	return feeds, entries, nil
}

func (p *Pipeline) fetch(ctx context.Context, source models.Source) (*ParsedFeed, error) {
	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}

	logger := log.WithFields(log.Fields{
		"name": source.Name,
		"url":  source.URL,
	})
	logger.Debug("Fetching feed")

	start := time.Now()
	parsed, err := p.parser.Parse(ctx, source.URL)
	fetchDuration.Observe(time.Since(start).Seconds())
	if err == nil && parsed == nil {
		err = errEmptyFeed
	}
	if err != nil {
		fetchErrors.Inc()
		return nil, &FetchError{Source: source.URL, Err: err}
	}

	logger.WithFields(log.Fields{
		"title":   parsed.Metadata.Title,
		"entries": len(parsed.Entries),
		"latency": time.Since(start),
	}).Info("Fetched feed")

	return parsed, nil
}

// uniqueID draws identifiers until one is unused within this run
func (p *Pipeline) uniqueID(seen map[string]struct{}) string {
	for {
		id := p.opts.NewID()
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			return id
		}
	}
}

func newEntryID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:10]
}

func sortEntries(entries []models.Entry, policy MissingDatePolicy) error {
	if policy == MissingDateError {
		undated, found := lo.Find(entries, func(e models.Entry) bool {
			return !e.HasPublished()
		})
		if found {
			return &MalformedEntryError{
				FeedTitle: undated.FeedTitle,
				Title:     undated.Title,
				Link:      undated.Link,
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PublishedAt().After(entries[j].PublishedAt())
	})
	return nil
}
