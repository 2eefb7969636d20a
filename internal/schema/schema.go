// Package schema defines the relational table descriptors supplied at
// indexing time and the serialized document form used for retrieval.
package schema

import (
	"fmt"
	"strings"
)

// fkMarker annotates a column that references another table. The expander
// parses it back out of rendered documents, so render and parse must agree.
const fkMarker = "FK→"

// Column describes a single table column
type Column struct {
	Name     string `yaml:"name"     json:"name"`
	Type     string `yaml:"type"     json:"type"`
	Nullable bool   `yaml:"nullable" json:"nullable"`
}

// ForeignKey describes a column referencing another table
type ForeignKey struct {
	Column           string `yaml:"column"            json:"column"`
	ReferencesTable  string `yaml:"references_table"  json:"references_table"`
	ReferencesColumn string `yaml:"references_column" json:"references_column"`
}

// TableSchema describes one relational table. Immutable once constructed;
// created from externally supplied metadata at indexing time.
type TableSchema struct {
	Name        string       `yaml:"table_name"   json:"table_name"`
	Description string       `yaml:"description"  json:"description"`
	Columns     []Column     `yaml:"columns"      json:"columns"`
	PrimaryKeys []string     `yaml:"primary_keys" json:"primary_keys"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys" json:"foreign_keys"`
}

// Validate checks a table descriptor for the problems that would poison the
// index: missing names, foreign keys pointing at undeclared columns.
func (t TableSchema) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table descriptor has no name")
	}

	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}

	colNames := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %q has a column with no name", t.Name)
		}

		colNames[c.Name] = true
	}

	for _, pk := range t.PrimaryKeys {
		if !colNames[pk] {
			return fmt.Errorf("table %q declares unknown primary key column %q", t.Name, pk)
		}
	}

	for _, fk := range t.ForeignKeys {
		if !colNames[fk.Column] {
			return fmt.Errorf("table %q declares foreign key on unknown column %q", t.Name, fk.Column)
		}

		if fk.ReferencesTable == "" {
			return fmt.Errorf("table %q foreign key on %q references no table", t.Name, fk.Column)
		}
	}

	return nil
}

// Document is the serialized, embeddable rendering of one table's schema.
// One document per table; regenerated on every re-index of that table.
type Document struct {
	TableName string `json:"table_name"`
	Text      string `json:"text"`
}

// Render serializes a table schema into its retrieval document. Columns carry
// PK and FK→target markers; the relationship summary lists every foreign key.
func Render(t TableSchema) Document {
	pks := make(map[string]bool, len(t.PrimaryKeys))
	for _, pk := range t.PrimaryKeys {
		pks[pk] = true
	}

	fks := make(map[string]ForeignKey, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		fks[fk.Column] = fk
	}

	cols := make([]string, 0, len(t.Columns))

	for _, col := range t.Columns {
		s := fmt.Sprintf("%s (%s", col.Name, col.Type)
		if pks[col.Name] {
			s += ", PK"
		}

		if fk, ok := fks[col.Name]; ok {
			s += ", " + fkMarker + fk.ReferencesTable
		}

		s += ")"
		cols = append(cols, s)
	}

	rels := make([]string, 0, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		rels = append(rels, fmt.Sprintf("%s references %s.%s", fk.Column, fk.ReferencesTable, fk.ReferencesColumn))
	}

	relStr := "None"
	if len(rels) > 0 {
		relStr = strings.Join(rels, "; ")
	}

	text := fmt.Sprintf("Table: %s | Description: %s | Columns: %s | Relationships: %s",
		t.Name, t.Description, strings.Join(cols, ", "), relStr)

	return Document{TableName: t.Name, Text: text}
}

// ParseDocumentName recovers the declared table name from a rendered
// document's text. Returns "" when the text does not carry the header.
func ParseDocumentName(text string) string {
	if !strings.HasPrefix(text, "Table: ") {
		return ""
	}

	head, _, _ := strings.Cut(text, "|")

	return strings.TrimSpace(strings.TrimPrefix(head, "Table: "))
}

// ParseForeignKeyTargets recovers the FK→target markers from a rendered
// document's column list, in order of appearance, without duplicates.
func ParseForeignKeyTargets(text string) []string {
	var targets []string

	seen := make(map[string]bool)

	for _, part := range strings.Split(text, "|") {
		if !strings.Contains(part, "Columns:") {
			continue
		}

		for _, token := range strings.Split(part, ",") {
			idx := strings.Index(token, fkMarker)
			if idx < 0 {
				continue
			}

			candidate := token[idx+len(fkMarker):]
			if cut := strings.IndexByte(candidate, ')'); cut >= 0 {
				candidate = candidate[:cut]
			}

			target := strings.TrimSpace(candidate)
			if target != "" && !seen[target] {
				seen[target] = true
				targets = append(targets, target)
			}
		}
	}

	return targets
}

// TableNames collects the declared table names of a document slice
func TableNames(docs []Document) map[string]struct{} {
	names := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		name := doc.TableName
		if name == "" {
			name = ParseDocumentName(doc.Text)
		}

		if name != "" {
			names[strings.ToLower(name)] = struct{}{}
		}
	}

	return names
}

// Texts returns the raw document texts, preserving order
func Texts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	return texts
}
