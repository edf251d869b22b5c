// Package classifier implements the natural-language intent classifier
// consumed by the fallback handler. It wraps Google's Gemini API as a
// black-box service: free text in, a structured intent out.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"quotabot/internal/config"
)

// Intent types returned by Classify.
const (
	IntentPriceQuery = "price_query"
	IntentSmallTalk  = "small_talk"
	IntentUnknown    = "unknown"
)

// Intent is the structured classification of a free-text message.
type Intent struct {
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Client defines the intent classification interface used by the pipeline.
// A nil Intent with a nil error means the classifier had no opinion; errors
// are reserved for transport failures.
type Client interface {
	Classify(ctx context.Context, text string) (*Intent, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"type":       {Type: genai.TypeString, Description: "One of: price_query, small_talk, unknown."},
		"symbol":     {Type: genai.TypeString, Description: "The asset ticker symbol if the user asked about a price. Empty otherwise."},
		"confidence": {Type: genai.TypeNumber, Description: "Classification confidence between 0 and 1."},
	},
	Required: []string{"type", "confidence"},
}

const systemInstruction = `You classify short chat messages sent to a market-quote bot.
Decide whether the user is asking for the price of a tradable asset (stock, ETF, crypto, index).
If so, respond with type "price_query" and the most likely ticker symbol.
If the message is greeting or chit-chat, respond with type "small_talk".
Otherwise respond with type "unknown". Always include a confidence between 0 and 1.`

// NewClient creates a new Gemini-backed classifier with the provided
// configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contentCfg := &genai.GenerateContentConfig{
		Temperature:       &cfg.Temperature,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    intentSchema,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	}

	logger := log.With("component", "classifier")
	logger.Info("Classifier client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: contentCfg,
		modelName:     cfg.ModelName,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

// Classify sends the raw text to the model and parses the structured intent.
func (c *sdkClient) Classify(ctx context.Context, text string) (*Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	jsonText, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to extract classification response: %w", err)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(jsonText), &intent); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse intent JSON from response", "error", err, "response_text", jsonText)
		return nil, fmt.Errorf("invalid intent JSON received: %w", err)
	}

	intent.Type = strings.ToLower(strings.TrimSpace(intent.Type))
	intent.Symbol = strings.ToUpper(strings.TrimSpace(intent.Symbol))

	switch intent.Type {
	case IntentPriceQuery, IntentSmallTalk, IntentUnknown:
	case "":
		return nil, nil
	default:
		c.log.DebugContext(ctx, "Unrecognized intent type from model, treating as unknown", "type", intent.Type)
		intent.Type = IntentUnknown
	}

	c.log.DebugContext(ctx, "Classified message", "type", intent.Type, "symbol", intent.Symbol, "confidence", intent.Confidence)
	return &intent, nil
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("nil response from gemini")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
			c.log.WarnContext(ctx, "Classification blocked by safety settings",
				"reason", resp.PromptFeedback.BlockReason, "message", resp.PromptFeedback.BlockReasonMessage)
			return "", fmt.Errorf("classification blocked: %s", resp.PromptFeedback.BlockReasonMessage)
		}
		return "", errors.New("empty response from gemini")
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty text in gemini response")
	}
	return text, nil
}
