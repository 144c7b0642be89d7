// Package docdb is a key-less document store that keeps every collection
// in a line-delimited JSON file. Reads scan the whole file.
package docdb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Document is one JSON object as stored on disk
type Document map[string]any

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type DB struct {
	mu  sync.Mutex
	dir string
}

// Open returns a store rooted at dir, creating the directory if needed
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &DB{dir: dir}, nil
}

// Path is the file backing a collection
func (db *DB) Path(collection string) string {
	return filepath.Join(db.dir, collection+".ndjson")
}

// Read returns every document in the collection in file order. A collection
// that was never written reads as empty.
func (db *DB) Read(collection string) ([]Document, error) {
	if !collectionName.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	return db.read(collection)
}

func (db *DB) read(collection string) ([]Document, error) {
	file, err := os.Open(db.Path(collection))
	if errors.Is(err, os.ErrNotExist) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	docs := []Document{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", collection, line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return docs, nil
}

// Write appends doc to the collection unless an identical document is
// already stored. Fields named in ignore are left out of the comparison.
// It reports whether the document was written.
func (db *DB) Write(collection string, doc any, ignore ...string) (bool, error) {
	if !collectionName.MatchString(collection) {
		return false, fmt.Errorf("invalid collection name %q", collection)
	}

	// Round trip so the comparison sees exactly what a read would return
	encoded, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encode document: %w", err)
	}
	var normalized Document
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return false, fmt.Errorf("document must be a JSON object: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	existing, err := db.read(collection)
	if err != nil {
		return false, err
	}
	wanted := without(normalized, ignore)
	for _, other := range existing {
		if reflect.DeepEqual(without(other, ignore), wanted) {
			log.WithFields(log.Fields{
				"collection": collection,
			}).Debug("Skipping existing document")
			return false, nil
		}
	}

	file, err := os.OpenFile(db.Path(collection), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		file.Close()
		return false, err
	}
	if err := file.Close(); err != nil {
		return false, err
	}
	return true, nil
}

func without(doc Document, fields []string) Document {
	if len(fields) == 0 {
		return doc
	}
	return lo.OmitByKeys(doc, fields)
}
