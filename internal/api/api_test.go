package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/executor"
	"github.com/adityatiwari12/chat-with-sql/internal/pipeline"
)

type stubAsker struct {
	outcome pipeline.Outcome
	err     error

	gotQuestion string
}

func (s *stubAsker) Process(_ context.Context, question string) (pipeline.Outcome, error) {
	s.gotQuestion = question

	return s.outcome, s.err
}

type stubModels struct {
	models []string
	err    error
}

func (s *stubModels) ListModels(context.Context) ([]string, error) { return s.models, s.err }

type stubDocs struct{ n int }

func (s *stubDocs) Len() int { return s.n }

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

func doAsk(t *testing.T, server *Server, body string) (*httptest.ResponseRecorder, askResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	var resp askResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}

	return rec, resp
}

func TestAsk(t *testing.T) {
	asker := &stubAsker{outcome: pipeline.Outcome{
		ID:       "req-1",
		Question: "How many orders?",
		SQL:      "SELECT count(*) FROM orders",
		Attempts: 1,
		Query:    executor.Result{Success: true, RowCount: 1},
		Answer:   "There are 7 orders.",
	}}

	server := NewServer(asker, nil, nil, nil)

	rec, resp := doAsk(t, server, `{"question": "How many orders?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "How many orders?", asker.gotQuestion)
	assert.Equal(t, "There are 7 orders.", resp.Answer)
	assert.Empty(t, resp.Error)
}

func TestAskClarification(t *testing.T) {
	asker := &stubAsker{outcome: pipeline.Outcome{
		ClarificationNeeded: "How many results do you want?",
	}}

	rec, resp := doAsk(t, NewServer(asker, nil, nil, nil), `{"question": "top customers"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "How many results do you want?", resp.ClarificationNeeded)
}

func TestAskValidationFailure(t *testing.T) {
	asker := &stubAsker{
		outcome: pipeline.Outcome{SQL: "DROP TABLE orders"},
		err:     errors.New(errors.ErrTypeValidation, "forbidden keyword: DROP"),
	}

	rec, resp := doAsk(t, NewServer(asker, nil, nil, nil), `{"question": "drop it"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Error, "DROP")
	assert.Equal(t, string(errors.ErrTypeValidation), resp.ErrorType)
}

func TestAskUpstreamFailure(t *testing.T) {
	asker := &stubAsker{err: errors.New(errors.ErrTypeGeneration, "model unavailable")}

	rec, resp := doAsk(t, NewServer(asker, nil, nil, nil), `{"question": "q"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, string(errors.ErrTypeGeneration), resp.ErrorType)
}

func TestAskBadRequest(t *testing.T) {
	server := NewServer(&stubAsker{}, nil, nil, nil)

	rec, _ := doAsk(t, server, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doAsk(t, server, `{"question": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthOK(t *testing.T) {
	server := NewServer(&stubAsker{},
		&stubModels{models: []string{"llama3.2:latest"}},
		&stubDocs{n: 5},
		&stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.IndexedTables)
	assert.Equal(t, []string{"llama3.2:latest"}, resp.Models)
}

func TestHealthDegraded(t *testing.T) {
	server := NewServer(&stubAsker{},
		&stubModels{err: assert.AnError},
		&stubDocs{n: 0},
		&stubPinger{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Len(t, resp.Problems, 3)
}
