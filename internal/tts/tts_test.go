package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	var receivedText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		receivedText = body.Input.Text

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": "c29tZSBhdWRpbw=="})
	}))
	defer server.Close()

	client := New(server.URL, "test-key")

	audio, err := client.Synthesize(context.Background(), "Welcome to the course.")
	require.NoError(t, err)
	assert.Equal(t, "c29tZSBhdWRpbw==", audio)
	assert.Equal(t, "Welcome to the course.", receivedText)
}

func TestSynthesizeTruncatesLongInput(t *testing.T) {
	var receivedLength int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		receivedLength = len(body.Input.Text)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": "c29tZSBhdWRpbw=="})
	}))
	defer server.Close()

	client := New(server.URL, "test-key")

	_, err := client.Synthesize(context.Background(), strings.Repeat("a", MaxInputLength*2))
	require.NoError(t, err)
	assert.Equal(t, MaxInputLength, receivedLength)
}

func TestSynthesizeTruncatesOnRuneBoundary(t *testing.T) {
	var receivedText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		receivedText = body.Input.Text

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": "c29tZSBhdWRpbw=="})
	}))
	defer server.Close()

	client := New(server.URL, "test-key")

	// Three-byte runes put the byte limit in the middle of a character.
	_, err := client.Synthesize(context.Background(), strings.Repeat("€", MaxInputLength))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(receivedText), "truncation must not split a rune")
	assert.NotEmpty(t, receivedText)
	assert.LessOrEqual(t, len(receivedText), MaxInputLength)
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key")

	_, err := client.Synthesize(context.Background(), "anything")
	require.ErrorIs(t, err, ErrEmptyAudio)
}

func TestSynthesizeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := New(server.URL, "test-key")

	_, err := client.Synthesize(context.Background(), "anything")
	require.Error(t, err)
}
