// Package chat is the client for the career-assistant chat service.
// Each request is a single message with no prior turns; a fixed system
// instruction caps the reply length.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const systemInstruction = "You are a concise career advisor for learners. " +
	"Answer the question directly in at most 120 words of plain text."

// ErrEmptyReply marks a chat response with no usable text.
var ErrEmptyReply = errors.New("chat response contains no text")

type chatPart struct {
	Text string `json:"text"`
}

type chatContent struct {
	Parts []chatPart `json:"parts"`
}

type chatRequest struct {
	SystemInstruction chatContent   `json:"system_instruction"`
	Contents          []chatContent `json:"contents"`
}

type chatResponse struct {
	Candidates []struct {
		Content chatContent `json:"content"`
	} `json:"candidates"`
}

// Client sends single-turn chat messages to the hosted model.
type Client struct {
	httpClient *resty.Client
	model      string
}

// New creates a chat client for the given API base URL, key and model.
func New(baseURL, apiKey, model string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetQueryParam("key", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		httpClient: httpClient,
		model:      model,
	}
}

// Send submits one message and returns the assistant's plain-text reply.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	request := chatRequest{
		SystemInstruction: chatContent{Parts: []chatPart{{Text: systemInstruction}}},
		Contents:          []chatContent{{Parts: []chatPart{{Text: message}}}},
	}

	var response chatResponse
	httpResponse, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/v1beta/models/" + c.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("in internal/chat/chat.go/Send(): error while `:generateContent` requesting: %w", err)
	}
	if httpResponse.IsError() {
		return "", fmt.Errorf("in internal/chat/chat.go/Send(): chat service returned status %d", httpResponse.StatusCode())
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text)
	if reply == "" {
		return "", ErrEmptyReply
	}

	return reply, nil
}
