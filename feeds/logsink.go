package feeds

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LogSink opens the destination of the entry log for one ingestion run.
// Every Open starts a fresh log; previous content is discarded.
type LogSink interface {
	Open() (io.WriteCloser, error)
}

// FileLog writes the entry log to a file, creating parent directories
type FileLog string

func (f FileLog) Open() (io.WriteCloser, error) {
	path := string(f)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return os.Create(path)
}

// WriterLog writes the entry log to an arbitrary writer. Writers with a
// Reset method (bytes.Buffer, strings.Builder) are reset on Open.
type WriterLog struct {
	W io.Writer
}

type resetter interface {
	Reset()
}

func (l WriterLog) Open() (io.WriteCloser, error) {
	if r, ok := l.W.(resetter); ok {
		r.Reset()
	}
	return nopCloser{l.W}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
