package aicontent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillatlas/skillatlas/internal/models"
)

func newGenerationServer(t *testing.T, replyText string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{{"text": replyText}},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestGenerateOutline(t *testing.T) {
	server := newGenerationServer(t, `{
		"title": "Go for Backend Engineers",
		"description": "From syntax to services.",
		"modules": [
			{"title": "Basics", "summary": "Syntax and tooling"},
			{"title": "Concurrency", "summary": "Goroutines and channels"}
		]
	}`)

	client := New(server.URL, "test-key", "test-model")

	course, err := client.GenerateOutline(context.Background(), "Go for backend engineers")
	require.NoError(t, err)
	assert.Equal(t, "Go for Backend Engineers", course.Title)
	require.Len(t, course.Modules, 2)
	assert.Equal(t, "Concurrency", course.Modules[1].Title)
}

func TestGenerateModuleContentWithCodeFence(t *testing.T) {
	server := newGenerationServer(t, "```json\n{\"content\": \"# Goroutines\", \"visualContent\": [{\"type\": \"mermaid\", \"diagram\": \"graph TD; A-->B\"}], \"textualContent\": \"Goroutines are lightweight.\"}\n```")

	client := New(server.URL, "test-key", "test-model")

	content, err := client.GenerateModuleContent(
		context.Background(),
		"Go for Backend Engineers",
		models.Module{ID: "m1", Title: "Concurrency"},
		3,
		7,
	)
	require.NoError(t, err)
	assert.Equal(t, "# Goroutines", content.Content)
	require.Len(t, content.VisualContent, 1)
	assert.Equal(t, "mermaid", content.VisualContent[0].Type)
	assert.Equal(t, "Goroutines are lightweight.", content.TextualContent)
}

func TestGenerateModuleContentMalformedReply(t *testing.T) {
	server := newGenerationServer(t, "Sorry, I can only answer in prose.")

	client := New(server.URL, "test-key", "test-model")

	_, err := client.GenerateModuleContent(
		context.Background(),
		"Go for Backend Engineers",
		models.Module{ID: "m1", Title: "Concurrency"},
		3,
		7,
	)
	require.ErrorIs(t, err, ErrUnexpectedResponseShape)
}

func TestGenerateNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "test-model")

	_, err := client.GenerateOutline(context.Background(), "anything")
	require.ErrorIs(t, err, ErrUnexpectedResponseShape)
}

func TestGenerateServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "test-model")

	_, err := client.GenerateOutline(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedResponseShape)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
