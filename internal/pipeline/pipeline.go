// Package pipeline orchestrates a question's path from natural language to
// an answer: retrieval, context expansion, generation, validation, bounded
// execution with a single correction retry, and answer synthesis. Every
// stage collaborator is injected, so the flow can be tested without a
// model or a database.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/executor"
	"github.com/adityatiwari12/chat-with-sql/internal/logging"
	"github.com/adityatiwari12/chat-with-sql/internal/schema"
	"github.com/adityatiwari12/chat-with-sql/internal/sqlval"
)

// maxAttempts bounds execution: the first attempt plus one correction
const maxAttempts = 2

// Store retrieves and expands schema context
type Store interface {
	Retrieve(ctx context.Context, question string, topK int) ([]schema.Document, error)
	Expand(initial []schema.Document) []schema.Document
}

// Generator produces and repairs SQL candidates
type Generator interface {
	CheckAmbiguity(question string) string
	Generate(ctx context.Context, question string, docs []schema.Document) (string, error)
	Correct(ctx context.Context, question string, docs []schema.Document, failedSQL, dbError string) (string, error)
}

// Validator checks a candidate against the safety policy
type Validator interface {
	Validate(sql string, allowedTables map[string]struct{}) sqlval.Outcome
}

// Executor runs a validated statement
type Executor interface {
	Execute(ctx context.Context, query string) executor.Result
}

// Answerer phrases a successful result as an answer
type Answerer interface {
	Answer(ctx context.Context, question, sql string, result executor.Result) string
}

// Outcome is everything one question produced. SQL and Validation describe
// the final candidate, which is the corrected one if a retry happened.
type Outcome struct {
	ID                  string          `json:"id"`
	Question            string          `json:"question"`
	ClarificationNeeded string          `json:"clarification_needed,omitempty"`
	ContextTables       []string        `json:"context_tables,omitempty"`
	SQL                 string          `json:"sql,omitempty"`
	Attempts            int             `json:"attempts"`
	Validation          sqlval.Outcome  `json:"validation"`
	Query               executor.Result `json:"query"`
	Answer              string          `json:"answer,omitempty"`
	TotalTimeMs         float64         `json:"total_time_ms"`
}

// Pipeline wires the stages together
type Pipeline struct {
	store     Store
	generator Generator
	validator Validator
	executor  Executor
	answerer  Answerer
	topK      int
}

// New creates a pipeline. topK is how many documents retrieval returns
// before expansion.
func New(store Store, generator Generator, validator Validator, exec Executor, answerer Answerer, topK int) *Pipeline {
	if topK <= 0 {
		topK = 5
	}

	return &Pipeline{
		store:     store,
		generator: generator,
		validator: validator,
		executor:  exec,
		answerer:  answerer,
		topK:      topK,
	}
}

// Process answers one question. A returned error is terminal for the
// request; the Outcome still carries whatever stages completed, so callers
// can show the user how far the question got.
func (p *Pipeline) Process(ctx context.Context, question string) (Outcome, error) {
	start := time.Now()

	outcome := Outcome{
		ID:       uuid.NewString(),
		Question: question,
	}
	defer func() {
		outcome.TotalTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	}()

	log := logging.WithFields(map[string]interface{}{
		"request_id": outcome.ID,
		"question":   question,
	})

	if strings.TrimSpace(question) == "" {
		return outcome, errors.New(errors.ErrTypeValidation, "question is empty")
	}

	if clarification := p.generator.CheckAmbiguity(question); clarification != "" {
		log.Info("question is ambiguous, asking for clarification")
		outcome.ClarificationNeeded = clarification

		return outcome, nil
	}

	docs, err := p.store.Retrieve(ctx, question, p.topK)
	if err != nil {
		return outcome, err
	}

	docs = p.store.Expand(docs)

	// The allowed set is fixed here; corrections are validated against the
	// same tables as the original candidate.
	allowed := schema.TableNames(docs)

	for _, doc := range docs {
		outcome.ContextTables = append(outcome.ContextTables, doc.TableName)
	}

	log.WithField("tables", strings.Join(outcome.ContextTables, ",")).Debug("schema context assembled")

	sql, err := p.generator.Generate(ctx, question, docs)
	if err != nil {
		return outcome, err
	}

	for attempt := 1; ; attempt++ {
		// The sanitized form is the final statement: what validation judges
		// is exactly what runs.
		sql = sqlval.Sanitize(sql)

		outcome.Attempts = attempt
		outcome.SQL = sql
		outcome.Validation = p.validator.Validate(sql, allowed)

		if !outcome.Validation.IsValid {
			reason := strings.Join(outcome.Validation.Errors, "; ")

			if attempt == 1 {
				// An unsafe candidate is rejected outright, never repaired
				log.WithField("sql", sql).Warn("generated SQL rejected by validation")

				return outcome, errors.Newf(errors.ErrTypeValidation,
					"generated SQL failed validation: %s", reason)
			}

			return outcome, errors.Newf(errors.ErrTypeCorrection,
				"corrected SQL failed validation: %s", reason)
		}

		outcome.Query = p.executor.Execute(ctx, sql)
		if outcome.Query.Success {
			break
		}

		if attempt == maxAttempts {
			return outcome, errors.Newf(errors.ErrTypeCorrection,
				"corrected query failed: %s", outcome.Query.ErrorMessage)
		}

		log.WithField("error", outcome.Query.ErrorMessage).Info("execution failed, attempting correction")

		sql, err = p.generator.Correct(ctx, question, docs, sql, outcome.Query.ErrorMessage)
		if err != nil {
			return outcome, err
		}
	}

	outcome.Answer = p.answerer.Answer(ctx, question, outcome.SQL, outcome.Query)

	log.WithFields(map[string]interface{}{
		"attempts": outcome.Attempts,
		"rows":     outcome.Query.RowCount,
	}).Info("question answered")

	return outcome, nil
}
