package feeds

import (
	"errors"
	"fmt"
)

var (
	ErrNoSources    = errors.New("no feed sources given")
	ErrInvalidLimit = errors.New("limit must not be negative")
)

// FetchError is returned when a source could not be retrieved or parsed.
// It aborts the whole run.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MalformedEntryError is returned at sort time for an entry without a
// publication date when the pipeline is configured to reject those.
type MalformedEntryError struct {
	FeedTitle string
	Title     string
	Link      string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("entry %q in feed %q has no publication date", e.Title, e.FeedTitle)
}

// LogError wraps failures to open, write or close the entry log
type LogError struct {
	Op  string
	Err error
}

func (e *LogError) Error() string {
	return fmt.Sprintf("entry log %s: %v", e.Op, e.Err)
}

func (e *LogError) Unwrap() error {
	return e.Err
}
