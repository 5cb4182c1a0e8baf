// Package gemini is a minimal client for the Gemini generateContent endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "bi-agent/internal/common/errors"
	commonhttp "bi-agent/internal/common/http"
	"bi-agent/internal/common/validation"
)

const ServiceName = "gemini"

// envelopeSchema is the part of a generateContent reply the client depends on.
var envelopeSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["candidates"],
  "properties": {
    "candidates": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["content"],
        "properties": {
          "content": {
            "type": "object",
            "required": ["parts"],
            "properties": {
              "parts": {
                "type": "array",
                "minItems": 1,
                "items": {
                  "type": "object",
                  "required": ["text"],
                  "properties": {"text": {"type": "string"}}
                }
              }
            }
          }
        }
      }
    }
  }
}`)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	config Config
	http   *commonhttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		config: cfg,
		http:   commonhttp.NewClient(cfg.Timeout),
	}
}

// Prompt is one single-turn generation request.
type Prompt struct {
	SystemInstruction string
	UserText          string
	Temperature       float64
	// JSONResponse asks the model to reply with application/json.
	JSONResponse bool
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// CheckConfigured fails with a configuration error when no key or model is set.
func (c *Client) CheckConfigured() error {
	if c.config.APIKey == "" {
		return apperrors.NewConfigurationError("GEMINI_API_KEY is not configured")
	}
	if c.config.Model == "" {
		return apperrors.NewConfigurationError("gemini model is not configured")
	}
	return nil
}

// GenerateText returns the text of the first part of the first candidate.
// Transport failures and non-2xx replies are UPSTREAM_CALL_FAILED (or
// UPSTREAM_TIMEOUT); an unexpected envelope is UPSTREAM_FORMAT_INVALID.
func (c *Client) GenerateText(ctx context.Context, p Prompt) (string, error) {
	if err := c.CheckConfigured(); err != nil {
		return "", err
	}

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: p.UserText}}}},
		GenerationConfig: generationConfig{
			Temperature: p.Temperature,
		},
	}
	if p.SystemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: p.SystemInstruction}}}
	}
	if p.JSONResponse {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, c.config.Model)
	resp, err := c.http.PostJSON(ctx, url, map[string]string{"x-goog-api-key": c.config.APIKey}, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.NewUpstreamTimeoutError(ServiceName, err)
		}
		return "", apperrors.NewUpstreamCallError(ServiceName, err)
	}
	if !resp.IsSuccess() {
		return "", apperrors.NewUpstreamCallError(ServiceName,
			fmt.Errorf("status %d: %s", resp.StatusCode, resp.Snippet()))
	}

	if result := envelopeSchema.ValidateBytes(resp.Body); !result.Valid {
		return "", apperrors.NewUpstreamFormatError(ServiceName, result.Error())
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", apperrors.NewUpstreamFormatError(ServiceName, err.Error())
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}
