package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := NewClient(Config{
		BaseURL:    server.URL,
		LLMModel:   "llama3.2",
		EmbedModel: "nomic-embed-text",
	})

	return client, server
}

func TestChat(t *testing.T) {
	var gotReq chatRequest

	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "SELECT 1"},
			Done:    true,
		})
	}))
	defer server.Close()

	out, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "give me sql"},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, "llama3.2", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.EqualValues(t, 0, gotReq.Options["temperature"])
}

func TestChatAPIError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Error: "model not found"})
	}))
	defer server.Close()

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestChatHTTPError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestEmbed(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	vec, err := client.Embed(context.Background(), "Which customers spent the most?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedEmptyVector(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer server.Close()

	_, err := client.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestListModels(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer server.Close()

	names, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "nomic-embed-text:latest"}, names)
}

func TestContextCancellation(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Embed(ctx, "question")
	require.Error(t, err)
}
