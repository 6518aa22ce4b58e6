package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"rental_moderation/internal/adapters/observability"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // tests and proxies only
}

// Client asks Gemini to describe one listing photo and returns the JSON
// object it answered with. Mapping to domain types happens in the app layer.
type Client struct {
	genai  *genai.Client
	model  string
	fetch  *Fetcher
	prompt string
}

func New(ctx context.Context, cfg Config, fetch *Fetcher) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{genai: client, model: cfg.Model, fetch: fetch, prompt: defaultRoomPrompt}, nil
}

func (c *Client) AnalyzeImage(ctx context.Context, imageRef string) (map[string]any, error) {
	img, mime, err := c.fetch.Load(ctx, imageRef)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(c.prompt),
		{InlineData: &genai.Blob{Data: img, MIMEType: mime}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	conf := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	start := time.Now()
	result, err := c.genai.Models.GenerateContent(ctx, c.model, contents, conf)
	if err != nil {
		observability.ObserveExternal("gemini", "generate_content", 0, time.Since(start))
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	observability.ObserveExternal("gemini", "generate_content", 200, time.Since(start))

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	out, err := parseObject(result.Text())
	if err != nil {
		return nil, err
	}

	if result.UsageMetadata != nil {
		log.Debug().
			Str("model", c.model).
			Str("image", imageRef).
			Int32("inputTokens", result.UsageMetadata.PromptTokenCount).
			Int32("outputTokens", result.UsageMetadata.CandidatesTokenCount).
			Msg("vision llm call")
	}
	return out, nil
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %.200s", text)
	}
	return text[start : end+1], nil
}

func parseObject(text string) (map[string]any, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w (response: %.200s)", err, jsonStr)
	}
	return out, nil
}
