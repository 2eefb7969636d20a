// Package answer turns query results into something a person can read: an
// aligned result table and a short natural language answer grounded in the
// returned rows.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/adityatiwari12/chat-with-sql/internal/executor"
	"github.com/adityatiwari12/chat-with-sql/internal/logging"
	"github.com/adityatiwari12/chat-with-sql/internal/ollama"
)

// maxTableRows caps rendered output; full results stay in the Result
const maxTableRows = 50

// maxPromptRows caps how much result data is sent back to the model
const maxPromptRows = 20

// ChatClient is the slice of the model client answering needs
type ChatClient interface {
	Chat(ctx context.Context, messages []ollama.Message, temperature float64) (string, error)
}

// Answerer produces natural language answers from query results
type Answerer struct {
	client ChatClient
}

// NewAnswerer creates an answerer backed by the given chat client
func NewAnswerer(client ChatClient) *Answerer {
	return &Answerer{client: client}
}

// Answer asks the model to phrase the result as a direct answer to the
// question. If the model is unavailable the fallback is a deterministic
// summary, never an error: by this point the query has already succeeded
// and the user deserves their data.
func (a *Answerer) Answer(ctx context.Context, question, sql string, result executor.Result) string {
	fallback := summarize(result)

	response, err := a.client.Chat(ctx, []ollama.Message{
		{
			Role: "system",
			Content: "You answer questions about data. Use only the query results provided; " +
				"never invent numbers. Answer in one to three plain sentences.",
		},
		{
			Role: "user",
			Content: fmt.Sprintf("Question: %s\n\nSQL:\n%s\n\nResults:\n%s\n\nAnswer the question.",
				question, sql, resultsForPrompt(result)),
		},
	}, 0.2)
	if err != nil {
		logging.Warnf("answer generation failed, using summary: %v", err)

		return fallback
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return fallback
	}

	return response
}

// summarize is the deterministic answer used when the model cannot be
// reached.
func summarize(result executor.Result) string {
	switch result.RowCount {
	case 0:
		return "The query ran successfully but returned no rows."
	case 1:
		return fmt.Sprintf("The query returned 1 row: %s.", formatRow(result.Columns, result.Rows[0]))
	default:
		suffix := ""
		if result.Truncated {
			suffix = " (more rows may exist)"
		}

		return fmt.Sprintf("The query returned %d rows%s. See the result table for details.",
			result.RowCount, suffix)
	}
}

func formatRow(columns []string, row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		name := fmt.Sprintf("column %d", i+1)
		if i < len(columns) {
			name = columns[i]
		}

		parts[i] = fmt.Sprintf("%s=%s", name, formatValue(v))
	}

	return strings.Join(parts, ", ")
}

// resultsForPrompt renders a compact pipe-separated view of the rows that
// go back to the model.
func resultsForPrompt(result executor.Result) string {
	var b strings.Builder

	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")

	rows := result.Rows
	if len(rows) > maxPromptRows {
		rows = rows[:maxPromptRows]
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}

		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}

	if len(result.Rows) > maxPromptRows {
		fmt.Fprintf(&b, "... and %d more rows\n", len(result.Rows)-maxPromptRows)
	}

	return b.String()
}

// FormatResultTable renders the result as an aligned text table, showing at
// most 50 rows.
func FormatResultTable(result executor.Result) string {
	if !result.Success {
		return "query failed: " + result.ErrorMessage
	}

	if result.RowCount == 0 {
		return "(no rows)"
	}

	var b strings.Builder

	table := tablewriter.NewWriter(&b)
	table.SetHeader(result.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	rows := result.Rows
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}

		table.Append(cells)
	}

	table.Render()

	if len(result.Rows) > maxTableRows {
		fmt.Fprintf(&b, "showing %d of %d rows\n", maxTableRows, result.RowCount)
	} else if result.Truncated {
		fmt.Fprintf(&b, "result capped at %d rows; more may exist\n", result.RowCount)
	}

	return b.String()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", val), "0"), ".")
	default:
		return fmt.Sprint(val)
	}
}
