// Package store implements the schema document store: a persistent,
// embeddable index of one document per table, with similarity retrieval and
// direct lookup by table name.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/schema"
)

var documentsBucket = []byte("documents")

// Embedder turns text into a vector. Injected so tests can substitute a
// deterministic implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// record is the persisted form of one indexed table
type record struct {
	TableName string    `json:"table_name"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
}

// Store keeps one document per table. Documents and vectors persist in a
// bbolt file; the similarity index is held in memory and rebuilt on open.
// Upsert is atomic per key: a concurrent reader never observes a
// half-written document.
type Store struct {
	mu       sync.RWMutex
	db       *bolt.DB
	embedder Embedder
	records  map[string]record
}

// Open opens (creating if necessary) the store at path
func Open(path string, embedder Embedder) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema store: %w", err)
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		records:  make(map[string]record),
	}

	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// load rebuilds the in-memory index from the persisted records
func (s *Store) load() error {
	return s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(documentsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt schema store record %q: %w", string(k), err)
			}

			s.records[rec.TableName] = rec

			return nil
		})
	})
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Len returns the number of indexed tables
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Upsert renders each table into its schema document, embeds it, and stores
// it keyed by table name, replacing any prior document for that key.
func (s *Store) Upsert(ctx context.Context, tables []schema.TableSchema) error {
	for _, table := range tables {
		if err := table.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrTypeValidation, "invalid table descriptor")
		}

		doc := schema.Render(table)

		vector, err := s.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeRetrieval, "failed to embed document for table %q", table.Name)
		}

		rec := record{TableName: table.Name, Text: doc.Text, Vector: vector}

		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, errors.ErrTypeInternal, "failed to encode schema document")
		}

		err = s.db.Update(func(tx *bolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists(documentsBucket)
			if err != nil {
				return err
			}

			return bucket.Put([]byte(table.Name), data)
		})
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeDatabase, "failed to persist document for table %q", table.Name)
		}

		// Memory swap happens after the write lands, one key at a time
		s.mu.Lock()
		s.records[table.Name] = rec
		s.mu.Unlock()
	}

	return nil
}

// scored pairs a document with its similarity to the query vector
type scored struct {
	doc   schema.Document
	score float64
}

// Retrieve embeds the question and returns the topK nearest documents by
// cosine similarity. Embedding failure is a retrieval failure the caller
// must treat as fatal for the request.
func (s *Store) Retrieve(ctx context.Context, question string, topK int) ([]schema.Document, error) {
	if topK <= 0 {
		return nil, errors.Newf(errors.ErrTypeRetrieval, "topK must be positive, got %d", topK)
	}

	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, errors.NewRetrievalError("failed to embed question", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, errors.New(errors.ErrTypeRetrieval, "schema store is empty").
			WithSuggestion("Run the index command before asking questions")
	}

	candidates := make([]scored, 0, len(s.records))

	for _, rec := range s.records {
		candidates = append(candidates, scored{
			doc:   schema.Document{TableName: rec.TableName, Text: rec.Text},
			score: cosineSimilarity(queryVec, rec.Vector),
		})
	}

	// Ties break on table name so ranking stays deterministic given a
	// deterministic embedding function.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}

		return candidates[i].doc.TableName < candidates[j].doc.TableName
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}

	docs := make([]schema.Document, topK)
	for i := 0; i < topK; i++ {
		docs[i] = candidates[i].doc
	}

	return docs, nil
}

// GetByNames returns the documents for the given table names. Names without
// a document are silently skipped; lookup is case-insensitive on the
// declared table name.
func (s *Store) GetByNames(names []string) map[string]schema.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]schema.Document)

	for _, name := range names {
		if rec, ok := s.records[name]; ok {
			found[name] = schema.Document{TableName: rec.TableName, Text: rec.Text}
			continue
		}

		for key, rec := range s.records {
			if strings.EqualFold(key, name) {
				found[name] = schema.Document{TableName: rec.TableName, Text: rec.Text}
				break
			}
		}
	}

	return found
}

// TableNames returns the names of all indexed tables, sorted
func (s *Store) TableNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score zero rather than erroring, which
// ranks them last.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
