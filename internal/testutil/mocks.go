// Package testutil provides mock implementations of the model-facing
// collaborators for testing without a running Ollama instance.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adityatiwari12/chat-with-sql/internal/ollama"
)

// MockChatClient replays scripted responses to chat calls
type MockChatClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]ollama.Message
}

// MockChatOption configures the mock chat client
type MockChatOption func(*MockChatClient)

// WithChatResponses sets the responses returned by successive Chat calls.
// The last response repeats once the script runs out.
func WithChatResponses(responses ...string) MockChatOption {
	return func(m *MockChatClient) {
		m.responses = responses
	}
}

// WithChatError makes every Chat call fail
func WithChatError(err error) MockChatOption {
	return func(m *MockChatClient) {
		m.err = err
	}
}

// NewMockChatClient creates a mock chat client
func NewMockChatClient(opts ...MockChatOption) *MockChatClient {
	m := &MockChatClient{}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Chat returns the next scripted response
func (m *MockChatClient) Chat(_ context.Context, messages []ollama.Message, _ float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages)

	if m.err != nil {
		return "", m.err
	}

	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock chat client has no scripted response")
	}

	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}

	return m.responses[idx], nil
}

// CallCount returns how many times Chat was invoked
func (m *MockChatClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

// Call returns the messages from the i-th Chat invocation
func (m *MockChatClient) Call(i int) []ollama.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[i]
}

// MockEmbedder embeds text by counting vocabulary words, so similarity is
// deterministic.
type MockEmbedder struct {
	vocabulary []string
	err        error
}

// MockEmbedderOption configures the mock embedder
type MockEmbedderOption func(*MockEmbedder)

// WithVocabulary sets the words that define the embedding dimensions
func WithVocabulary(words ...string) MockEmbedderOption {
	return func(m *MockEmbedder) {
		m.vocabulary = words
	}
}

// WithEmbedError makes every Embed call fail
func WithEmbedError(err error) MockEmbedderOption {
	return func(m *MockEmbedder) {
		m.err = err
	}
}

// NewMockEmbedder creates a mock embedder with a retail-flavored default
// vocabulary.
func NewMockEmbedder(opts ...MockEmbedderOption) *MockEmbedder {
	m := &MockEmbedder{
		vocabulary: []string{"customer", "order", "product", "payment", "item"},
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Embed returns a word-count vector over the vocabulary
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}

	lower := strings.ToLower(text)

	vec := make([]float32, len(m.vocabulary))
	for i, word := range m.vocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}

	return vec, nil
}
