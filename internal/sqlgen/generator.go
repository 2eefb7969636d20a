// Package sqlgen turns a natural language question plus retrieved schema
// context into a candidate SQL statement. Everything that comes back from
// the model is treated as untrusted text; this package only generates and
// extracts, it never judges safety.
package sqlgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/ollama"
	"github.com/adityatiwari12/chat-with-sql/internal/schema"
)

const systemPrompt = `You are a PostgreSQL expert. Convert the user's question into a single SQL query.

Rules:
1. Generate exactly one SELECT statement. Never generate INSERT, UPDATE, DELETE, DROP, or any other statement type.
2. Use only the tables and columns listed in the provided schema. Do not invent tables or columns.
3. Use standard PostgreSQL syntax.
4. Output only the SQL query. No explanations, no markdown, no commentary.`

const correctionPromptTemplate = `The following SQL query failed when executed against PostgreSQL.

Question: %s

Schema:
%s

Failed query:
%s

Database error:
%s

Fix the query. Use only the tables and columns in the schema above. Output only the corrected SELECT statement, nothing else.`

// ChatClient is the slice of the model client the generator needs
type ChatClient interface {
	Chat(ctx context.Context, messages []ollama.Message, temperature float64) (string, error)
}

// Generator produces SQL candidates from questions and schema context
type Generator struct {
	client ChatClient
}

// NewGenerator creates a generator backed by the given chat client
func NewGenerator(client ChatClient) *Generator {
	return &Generator{client: client}
}

// ambiguityChecks pair a question pattern with the clarification to ask.
// Each fires only when the question lacks the qualifier that would make it
// answerable, so "top 5 customers" passes while "top customers" does not.
var ambiguityChecks = []struct {
	pattern       *regexp.Regexp
	qualifier     *regexp.Regexp
	clarification string
}{
	{
		pattern:       regexp.MustCompile(`(?i)\btop\s+(customers|products|orders)\b`),
		qualifier:     regexp.MustCompile(`(?i)\btop\s+\d+`),
		clarification: "How many results do you want, and ranked by what (for example: revenue, order count)?",
	},
	{
		pattern:       regexp.MustCompile(`(?i)\bbest\b`),
		qualifier:     regexp.MustCompile(`(?i)\bbest\b.*\bby\b`),
		clarification: "What does \"best\" mean here: highest revenue, most orders, or something else?",
	},
	{
		pattern:       regexp.MustCompile(`(?i)\brecent\b`),
		qualifier:     regexp.MustCompile(`(?i)\b(last|past)\s+\d+\s+(day|days|week|weeks|month|months|year|years)\b`),
		clarification: "What time range counts as recent (for example: the last 30 days)?",
	},
}

// CheckAmbiguity returns a clarification question when the question is too
// vague to answer deterministically, or the empty string when generation
// can proceed. The check is pattern-based so the answer never depends on
// the model.
func (g *Generator) CheckAmbiguity(question string) string {
	for _, check := range ambiguityChecks {
		if check.pattern.MatchString(question) && !check.qualifier.MatchString(question) {
			return check.clarification
		}
	}

	return ""
}

// Generate asks the model for a SQL statement answering the question given
// the schema context, and extracts the statement from the response.
func (g *Generator) Generate(ctx context.Context, question string, docs []schema.Document) (string, error) {
	userPrompt := fmt.Sprintf("Schema:\n%s\n\nQuestion: %s\n\nSQL:",
		formatSchemaContext(docs), question)

	response, err := g.client.Chat(ctx, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, 0)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeGeneration, "SQL generation failed").
			WithSuggestion("Check that Ollama is running and the model is pulled")
	}

	return Extract(response), nil
}

// Correct asks the model to fix a statement that failed at execution. The
// caller re-validates the result; a correction carries no more trust than
// the original.
func (g *Generator) Correct(ctx context.Context, question string, docs []schema.Document, failedSQL, dbError string) (string, error) {
	prompt := fmt.Sprintf(correctionPromptTemplate,
		question, formatSchemaContext(docs), failedSQL, dbError)

	response, err := g.client.Chat(ctx, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, 0)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeCorrection, "SQL correction failed")
	}

	return Extract(response), nil
}

// Explain asks the model for a short plain-language description of what a
// statement does.
func (g *Generator) Explain(ctx context.Context, sql string) (string, error) {
	response, err := g.client.Chat(ctx, []ollama.Message{
		{Role: "system", Content: "You explain SQL queries to non-technical readers in two or three plain sentences."},
		{Role: "user", Content: "Explain this query:\n" + sql},
	}, 0.2)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeGeneration, "explanation failed")
	}

	return strings.TrimSpace(response), nil
}

// formatSchemaContext joins the retrieved documents, one table per line
func formatSchemaContext(docs []schema.Document) string {
	return strings.Join(schema.Texts(docs), "\n")
}
