// Package executor runs validated SQL against PostgreSQL under strict
// bounds: a read-only transaction, a server-side statement timeout, and a
// hard cap on fetched rows. Execution failures are captured in the result
// rather than returned, because a failed query is an expected pipeline
// outcome, not a program error.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/adityatiwari12/chat-with-sql/internal/logging"
)

// Result is the outcome of one execution attempt. When Success is false,
// Columns and Rows are empty and ErrorMessage says why.
type Result struct {
	Success         bool     `json:"success"`
	Columns         []string `json:"columns,omitempty"`
	Rows            [][]any  `json:"rows,omitempty"`
	RowCount        int      `json:"row_count"`
	Truncated       bool     `json:"truncated"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
}

// Executor runs statements against one database
type Executor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

// New opens a connection pool for the given PostgreSQL DSN. The connection
// is lazy; use Ping to verify reachability.
func New(dsn string, maxRows int, timeout time.Duration) (*Executor, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return NewWithDB(db, maxRows, timeout), nil
}

// NewWithDB wraps an existing pool, mainly for tests
func NewWithDB(db *sql.DB, maxRows int, timeout time.Duration) *Executor {
	if maxRows <= 0 {
		maxRows = 200
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Executor{db: db, maxRows: maxRows, timeout: timeout}
}

// Ping verifies the database is reachable
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close releases the connection pool
func (e *Executor) Close() error {
	return e.db.Close()
}

// Execute runs one statement in a read-only transaction with a server-side
// statement timeout, fetching at most maxRows rows. Truncated is true
// exactly when the cap was reached; a caller seeing it should assume more
// rows exist.
func (e *Executor) Execute(ctx context.Context, query string) Result {
	start := time.Now()

	fail := func(err error) Result {
		logging.WithField("error", err.Error()).Warn("query execution failed")

		return Result{
			Success:         false,
			ErrorMessage:    err.Error(),
			ExecutionTimeMs: elapsedMs(start),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout+5*time.Second)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fail(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to commit

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL statement_timeout = %d", e.timeout.Milliseconds())); err != nil {
		return fail(fmt.Errorf("failed to set statement timeout: %w", err))
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fail(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fail(err)
	}

	fetched := make([][]any, 0, e.maxRows)

	for len(fetched) < e.maxRows && rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return fail(err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		fetched = append(fetched, values)
	}

	if err := rows.Err(); err != nil {
		return fail(err)
	}

	return Result{
		Success:         true,
		Columns:         columns,
		Rows:            fetched,
		RowCount:        len(fetched),
		Truncated:       len(fetched) == e.maxRows,
		ExecutionTimeMs: elapsedMs(start),
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
