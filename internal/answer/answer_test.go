package answer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityatiwari12/chat-with-sql/internal/executor"
	"github.com/adityatiwari12/chat-with-sql/internal/ollama"
)

type stubChat struct {
	response string
	err      error
	gotMsgs  []ollama.Message
}

func (s *stubChat) Chat(_ context.Context, messages []ollama.Message, _ float64) (string, error) {
	s.gotMsgs = messages

	return s.response, s.err
}

func sampleResult() executor.Result {
	return executor.Result{
		Success:  true,
		Columns:  []string{"name", "total"},
		Rows:     [][]any{{"Aarav", 120.5}, {"Diya", 99.0}},
		RowCount: 2,
	}
}

func TestAnswer(t *testing.T) {
	stub := &stubChat{response: "Aarav spent the most, with a total of 120.5."}
	a := NewAnswerer(stub)

	out := a.Answer(context.Background(), "Who spent the most?", "SELECT ...", sampleResult())
	assert.Equal(t, "Aarav spent the most, with a total of 120.5.", out)

	// The prompt carries the question and the actual rows
	require.Len(t, stub.gotMsgs, 2)
	prompt := stub.gotMsgs[1].Content
	assert.Contains(t, prompt, "Who spent the most?")
	assert.Contains(t, prompt, "Aarav")
	assert.Contains(t, prompt, "name | total")
}

func TestAnswerFallsBackOnChatError(t *testing.T) {
	a := NewAnswerer(&stubChat{err: assert.AnError})

	out := a.Answer(context.Background(), "q", "SELECT 1", sampleResult())
	assert.Contains(t, out, "returned 2 rows")
}

func TestAnswerFallsBackOnEmptyResponse(t *testing.T) {
	a := NewAnswerer(&stubChat{response: "   "})

	out := a.Answer(context.Background(), "q", "SELECT 1", sampleResult())
	assert.Contains(t, out, "returned 2 rows")
}

func TestSummarize(t *testing.T) {
	assert.Contains(t,
		summarize(executor.Result{Success: true}),
		"no rows")

	one := summarize(executor.Result{
		Success:  true,
		Columns:  []string{"count"},
		Rows:     [][]any{{int64(42)}},
		RowCount: 1,
	})
	assert.Contains(t, one, "1 row")
	assert.Contains(t, one, "count=42")

	truncated := summarize(executor.Result{
		Success:   true,
		Columns:   []string{"id"},
		Rows:      [][]any{{int64(1)}, {int64(2)}},
		RowCount:  2,
		Truncated: true,
	})
	assert.Contains(t, truncated, "more rows may exist")
}

func TestFormatResultTable(t *testing.T) {
	out := FormatResultTable(sampleResult())

	assert.Contains(t, out, "name")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "Aarav")
	assert.Contains(t, out, "120.5")
	assert.Contains(t, out, "99")
}

func TestFormatResultTableEmpty(t *testing.T) {
	out := FormatResultTable(executor.Result{Success: true, Columns: []string{"name"}})
	assert.Equal(t, "(no rows)", out)
}

func TestFormatResultTableFailed(t *testing.T) {
	out := FormatResultTable(executor.Result{Success: false, ErrorMessage: "syntax error"})
	assert.Contains(t, out, "syntax error")
}

func TestFormatResultTableCapsRows(t *testing.T) {
	rows := make([][]any, 60)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("row-%d", i)}
	}

	out := FormatResultTable(executor.Result{
		Success:  true,
		Columns:  []string{"name"},
		Rows:     rows,
		RowCount: 60,
	})

	assert.Contains(t, out, "row-49")
	assert.NotContains(t, out, "row-50")
	assert.Contains(t, out, "showing 50 of 60 rows")
}

func TestFormatResultTableTruncatedNote(t *testing.T) {
	result := sampleResult()
	result.Truncated = true

	out := FormatResultTable(result)
	assert.Contains(t, out, "more may exist")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "hello", formatValue([]byte("hello")))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "120.5", formatValue(120.5))
	assert.Equal(t, "99", formatValue(99.0))
	assert.Equal(t, "true", formatValue(true))
}
