// Package tts is the client for the hosted text-to-speech service.
package tts

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// MaxInputLength is the longest text the service accepts per request;
// longer input is truncated before sending.
const MaxInputLength = 4096

// ErrEmptyAudio is returned when the service reply carries no audio.
var ErrEmptyAudio = errors.New("TTS response contains no audio content")

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Client synthesizes narration audio through the hosted service.
type Client struct {
	httpClient *resty.Client
}

// New creates a TTS client for the given API base URL and key.
func New(baseURL, apiKey string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetQueryParam("key", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{httpClient: httpClient}
}

// Synthesize converts text to speech and returns base64-encoded audio.
// Input longer than MaxInputLength is truncated.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if len(text) > MaxInputLength {
		// Back up to a rune boundary so the cut never splits a character.
		cut := MaxInputLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	var request synthesizeRequest
	request.Input.Text = text
	request.Voice.LanguageCode = "en-US"
	request.Voice.Name = "en-US-Standard-C"
	request.AudioConfig.AudioEncoding = "MP3"

	var response synthesizeResponse
	httpResponse, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/v1/text:synthesize")
	if err != nil {
		return "", fmt.Errorf("in internal/tts/tts.go/Synthesize(): error while `text:synthesize` requesting: %w", err)
	}
	if httpResponse.IsError() {
		return "", fmt.Errorf("in internal/tts/tts.go/Synthesize(): TTS service returned status %d", httpResponse.StatusCode())
	}

	if response.AudioContent == "" {
		return "", ErrEmptyAudio
	}

	return response.AudioContent, nil
}
