package store

import (
	"strings"

	"github.com/adityatiwari12/chat-with-sql/internal/schema"
)

// Expand computes the one-hop foreign-key closure of the retrieved context:
// every table directly referenced by an FK marker in an input document is
// fetched and appended, preserving input order and skipping duplicates.
// Markers on the newly added documents are not followed further, so the
// expansion is a single pass and idempotent.
func (s *Store) Expand(initial []schema.Document) []schema.Document {
	known := schema.TableNames(initial)

	var missing []string

	seen := make(map[string]bool)

	for _, doc := range initial {
		for _, target := range schema.ParseForeignKeyTargets(doc.Text) {
			key := strings.ToLower(target)
			if _, ok := known[key]; ok {
				continue
			}

			if !seen[key] {
				seen[key] = true
				missing = append(missing, target)
			}
		}
	}

	if len(missing) == 0 {
		return initial
	}

	expanded := make([]schema.Document, len(initial), len(initial)+len(missing))
	copy(expanded, initial)

	fetched := s.GetByNames(missing)

	for _, target := range missing {
		doc, ok := fetched[target]
		if !ok {
			// Referenced table was never indexed; nothing to add
			continue
		}

		key := strings.ToLower(doc.TableName)
		if _, ok := known[key]; ok {
			continue
		}

		known[key] = struct{}{}
		expanded = append(expanded, doc)
	}

	return expanded
}
