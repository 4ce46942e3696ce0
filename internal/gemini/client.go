// Package gemini implements assistant.Model on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/erazemk/shramba/internal/assistant"
)

var _ assistant.Model = (*Client)(nil)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash-001"

// Client is a Gemini API client. It is safe for concurrent use.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient connects to the Gemini API with an API key.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing API key")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends a single prompt and returns the text of the first candidate.
// A fresh model handle is configured per call since settings differ per request.
func (c *Client) Generate(ctx context.Context, req assistant.GenerateRequest) (string, error) {
	m := c.client.GenerativeModel(c.model)
	if req.System != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}

	var parts []genai.Part
	if req.Image != nil {
		parts = append(parts, genai.ImageData(imageFormat(req.Image.MIME), req.Image.Data))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text in Gemini response")
	}
	return b.String(), nil
}

// imageFormat turns "image/png" into the "png" format genai expects.
func imageFormat(mime string) string {
	if _, format, ok := strings.Cut(mime, "/"); ok {
		return format
	}
	return "jpeg"
}
