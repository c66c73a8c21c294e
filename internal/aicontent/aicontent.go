// Package aicontent is the client for the hosted generative-language
// service. It turns module descriptions into structured course content
// and course topics into outlines. Responses that do not parse into
// the expected JSON shape are a hard failure for that request.
package aicontent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/skillatlas/skillatlas/internal/models"
)

// ErrUnexpectedResponseShape marks a generation reply missing the
// fields the application requires.
var ErrUnexpectedResponseShape = errors.New("AI response is missing expected fields")

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

type outlinePayload struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Modules     []models.Module `json:"modules"`
}

// Client calls the generative-language API. One request, one response;
// retry and backoff stay with the hosted service.
type Client struct {
	httpClient *resty.Client
	model      string
}

// New creates a content client for the given API base URL, key and model.
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

// GenerateOutline produces a course outline for a topic.
func (c *Client) GenerateOutline(ctx context.Context, topic string) (*models.Course, error) {
	prompt := fmt.Sprintf(
		"Create a course outline for the topic %q. "+
			"Reply with JSON only: {\"title\": string, \"description\": string, "+
			"\"modules\": [{\"title\": string, \"summary\": string}]}.",
		topic,
	)

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload outlinePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrUnexpectedResponseShape
	}
	if payload.Title == "" || len(payload.Modules) == 0 {
		return nil, ErrUnexpectedResponseShape
	}

	return &models.Course{
		Title:       payload.Title,
		Description: payload.Description,
		Modules:     payload.Modules,
	}, nil
}

// GenerateModuleContent produces the content of one module. The point
// preferences steer the share of visual versus textual material.
func (c *Client) GenerateModuleContent(
	ctx context.Context,
	courseTitle string,
	module models.Module,
	visualPoints, textualPoints int,
) (*models.ModuleContent, error) {
	prompt := fmt.Sprintf(
		"Generate learning content for the module %q (summary: %q) of the course %q. "+
			"The learner preference scores are visual=%d and textual=%d; favor the higher one. "+
			"Reply with JSON only: {\"content\": string, "+
			"\"visualContent\": [{\"type\": \"mermaid\", \"diagram\": string} | {\"type\": \"url\", \"url\": string}], "+
			"\"textualContent\": string}.",
		module.Title,
		module.Summary,
		courseTitle,
		visualPoints,
		textualPoints,
	)

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var content models.ModuleContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, ErrUnexpectedResponseShape
	}
	if content.Content == "" {
		return nil, ErrUnexpectedResponseShape
	}

	return &content, nil
}

// generate performs one generation call and returns the reply text
// with any markdown code fencing stripped.
func (c *Client) generate(ctx context.Context, prompt string) ([]byte, error) {
	request := generateRequest{
		Contents: []generateContent{
			{Parts: []generatePart{{Text: prompt}}},
		},
	}

	var response generateResponse
	httpResponse, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/v1beta/models/" + c.model + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("in internal/aicontent/aicontent.go/generate(): error while `:generateContent` requesting: %w", err)
	}
	if httpResponse.IsError() {
		return nil, fmt.Errorf("in internal/aicontent/aicontent.go/generate(): AI service returned status %d", httpResponse.StatusCode())
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return nil, ErrUnexpectedResponseShape
	}

	return []byte(stripCodeFence(response.Candidates[0].Content.Parts[0].Text)), nil
}

// stripCodeFence removes a surrounding ```json ... ``` block the model
// tends to wrap JSON replies in.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
