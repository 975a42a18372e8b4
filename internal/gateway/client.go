package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"chatrelay/internal/config"
	"chatrelay/internal/models"
)

const (
	// DefaultModel serves text requests that name no model or one outside
	// the allow-list.
	DefaultModel = "gpt-4o-mini"
	// VisionModel is pinned for any request carrying image data.
	VisionModel = "gpt-4o-mini"
	// ImageModel is the fixed identifier for image generation.
	ImageModel = "dall-e-2"

	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
	DefaultImageSize   = "512x512"
)

// allowedModels is the fixed set of text model identifiers callers may pick.
var allowedModels = map[string]struct{}{
	"gpt-4o-mini": {},
	"o1-mini":     {},
}

// Recorder receives one record per successful generation. Failures to record
// are surfaced as diagnostics only, never as generation failures.
type Recorder interface {
	Append(prompt, response string) error
}

// TextRequest carries one text generation call. Context is the prior
// conversation, oldest first. MaxTokens and Temperature are pointers so an
// explicit zero is distinguishable from an absent field; defaults apply only
// when nil.
type TextRequest struct {
	Prompt      string
	Context     []models.ChatTurn
	Model       string
	MaxTokens   *int
	Temperature *float64
	ImageData   string
}

// Client dispatches synchronous calls to the OpenAI-compatible provider.
// Each logical request produces exactly one outbound call; there are no
// retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	recorder   Recorder
	log        zerolog.Logger
}

// New constructs a Client from configuration. recorder may be nil.
func New(cfg *config.Config, recorder Recorder, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
		recorder:   recorder,
		log:        log.With().Str("component", "gateway").Logger(),
	}
}

// RenderTranscript flattens prior turns plus the new prompt into the linear
// transcript sent to the provider. With no prior turns the transcript is the
// raw prompt.
func RenderTranscript(prompt string, context []models.ChatTurn) string {
	if len(context) == 0 {
		return prompt
	}
	var b strings.Builder
	for _, turn := range context {
		if turn.Sender == models.SenderUser {
			fmt.Fprintf(&b, "User: %s\n", turn.Text)
		} else {
			fmt.Fprintf(&b, "AI: %s\n", turn.Text)
		}
	}
	fmt.Fprintf(&b, "User: %s\nAI:", prompt)
	return b.String()
}

// resolveModel applies the allow-list; unknown identifiers fall back to the
// default instead of erroring, matching the front-end's model selector.
func resolveModel(requested string) string {
	if _, ok := allowedModels[requested]; ok {
		return requested
	}
	return DefaultModel
}

// GenerateText renders the transcript, dispatches one chat-completions call
// and returns the first choice's message text.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	maxTokens := DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	transcript := RenderTranscript(req.Prompt, req.Context)

	var payload map[string]any
	if req.ImageData != "" {
		// Multimodal content parts; model pinned regardless of caller input.
		payload = map[string]any{
			"model": VisionModel,
			"messages": []map[string]any{{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": transcript},
					{"type": "image_url", "image_url": map[string]any{"url": req.ImageData}},
				},
			}},
			"max_tokens":  maxTokens,
			"temperature": temperature,
		}
	} else {
		payload = map[string]any{
			"model": resolveModel(req.Model),
			"messages": []map[string]any{
				{"role": "user", "content": transcript},
			},
			"max_tokens":  maxTokens,
			"temperature": temperature,
			"top_p":       1,
			"n":           1,
			"stream":      false,
		}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", &APIError{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: "provider returned no choices"}
	}
	text := result.Choices[0].Message.Content
	c.record(req.Prompt, text)
	return text, nil
}

// GenerateImage dispatches one image-generation call and returns the first
// result's URL. An empty prompt is rejected before any outbound call.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", missingPromptError()
	}
	if size == "" {
		size = DefaultImageSize
	}
	payload := map[string]any{
		"model":  ImageModel,
		"prompt": prompt,
		"n":      1,
		"size":   size,
	}
	var result struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/images/generations", payload, &result); err != nil {
		return "", err
	}
	if len(result.Data) == 0 {
		return "", &APIError{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: "provider returned no image data"}
	}
	url := result.Data[0].URL
	c.record("Image generation: "+prompt, "Generated image: "+url)
	return url, nil
}

// ModelStatus reports whether one allow-listed model is usable with the
// configured key.
type ModelStatus struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// ListModels queries the provider's model catalog and reports availability of
// the allow-listed identifiers.
func (c *Client) ListModels(ctx context.Context) ([]ModelStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Classify(providerMessage(body, resp.StatusCode), resp.StatusCode)
	}

	var catalog struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	known := make(map[string]bool, len(catalog.Data))
	for _, m := range catalog.Data {
		known[m.ID] = true
	}
	statuses := make([]ModelStatus, 0, len(AllowedModelIDs()))
	for _, id := range AllowedModelIDs() {
		statuses = append(statuses, ModelStatus{ID: id, Available: known[id]})
	}
	return statuses, nil
}

// AllowedModelIDs returns the model allow-list including the image model, in
// stable order.
func AllowedModelIDs() []string {
	return []string{"gpt-4o-mini", "o1-mini", ImageModel}
}

// post sends one JSON POST and decodes the 2xx response into out. Non-2xx
// responses are classified from the provider's structured error body.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug().Str("endpoint", endpoint).Int("bytes", len(body)).Msg("dispatching provider call")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &APIError{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("provider call finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Classify(providerMessage(respBody, resp.StatusCode), resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// providerMessage extracts the message from the provider's structured error
// body, falling back to the raw body.
func providerMessage(body []byte, status int) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("provider returned status %d", status)
	}
	return msg
}

// record reports a finished generation to the interaction logger. Failures
// are swallowed and only logged.
func (c *Client) record(prompt, response string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Append(prompt, response); err != nil {
		c.log.Warn().Err(err).Msg("interaction logging failed")
	}
}
