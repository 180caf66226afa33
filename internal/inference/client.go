package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/clinvault/clinvault/config"
)

// Part is one payload item of a multi-part inference request: either inline
// binary content (base64 + MIME type) or plain text. Exactly one of the two
// fields is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func InlinePart(mimeType string, data string) Part {
	return Part{InlineData: &InlineData{MimeType: mimeType, Data: data}}
}

// Client issues schema-constrained generation requests against the external
// inference service. Implementations perform exactly one attempt per call;
// retry policy belongs to the caller.
type Client interface {
	// GenerateJSON sends an instruction plus payload parts with a declared
	// response schema, and unmarshals the returned JSON document into out.
	GenerateJSON(ctx context.Context, instruction string, parts []Part, schema map[string]any, out any) error
}

type client struct {
	log        *zap.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg config.InferenceConfig, log *zap.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing inference API key")
	}
	return &client{
		log:        log,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []Part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *client) GenerateJSON(ctx context.Context, instruction string, parts []Part, schema map[string]any, out any) error {
	reqParts := make([]Part, 0, len(parts)+1)
	reqParts = append(reqParts, TextPart(instruction))
	reqParts = append(reqParts, parts...)

	body := generateRequest{
		Contents: []content{{Parts: reqParts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	raw, err := c.doOnce(ctx, body)
	if err != nil {
		return err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("inference decode error: %w; raw=%s", err, truncate(string(raw), 512))
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("inference response has no candidates")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("inference payload does not match schema: %w; payload=%s", err, truncate(text, 512))
	}
	return nil
}

func (c *client) doOnce(ctx context.Context, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding inference request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: truncate(string(raw), 512)}
		var eb apiErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Status != "" {
			apiErr.Status = eb.Error.Status
			apiErr.Message = eb.Error.Message
		}
		c.log.Warn("inference request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("api_status", apiErr.Status),
		)
		return nil, apiErr
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
