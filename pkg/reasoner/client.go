package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/models"
)

const systemPrompt = `You are a pregnancy safety assistant. The user names an item, food,
activity, or sends a photo of an object. Explain briefly whether it is safe
during pregnancy and why. Always end your reply with two lines:
RISK_SCORE: <number from 1 (harmless) to 10 (dangerous)>
REFERENCES: <semicolon-separated sources, or "none">
If the input is a photo, start your reply with "ITEM: <what you see>".`

// Client calls the external reasoning service over its OpenAI-compatible
// chat completions endpoint. It performs no retries; a failed call is the
// caller's signal to take the fallback path.
type Client struct {
	cfg    config.ReasonerConfig
	client *http.Client
}

// New creates a Client with the configured bounded timeout.
func New(cfg config.ReasonerConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// chatMessage carries either a plain string or a list of content parts
// (for image input), so Content is deliberately untyped.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Assess asks the reasoner about a free-text item.
func (c *Client) Assess(ctx context.Context, item string) (models.Assessment, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Is %q safe during pregnancy?", item)},
		},
		MaxTokens: c.cfg.MaxTokens,
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		return models.Assessment{}, err
	}
	a := Parse(text)
	a.Item = item
	return a, nil
}

// AssessImage asks the reasoner about a base64-encoded photo.
func (c *Client) AssessImage(ctx context.Context, imageB64 string) (models.Assessment, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "Is the object in this photo safe during pregnancy?"},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imageB64}},
			}},
		},
		MaxTokens: c.cfg.MaxTokens,
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		return models.Assessment{}, err
	}
	a := Parse(text)
	a.Item = ParseItem(text)
	return a, nil
}

// complete posts a chat completion request and returns the reply text.
func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode reasoner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.URL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create reasoner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoner call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read reasoner response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reasoner returned %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("decode reasoner response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("reasoner error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("reasoner returned empty reply")
	}
	return cr.Choices[0].Message.Content, nil
}
