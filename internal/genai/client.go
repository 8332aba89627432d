// Package genai is the client for the hosted Gemini text-generation
// service used for clinical reasoning.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/medsage/medsage-server/internal/config"
)

// ErrNotConfigured is returned when no API key is present. Callers treat
// it like any other generation failure and degrade.
var ErrNotConfigured = errors.New("generative AI API key not configured")

// SystemInstruction frames every generation request. The mandated
// response shape (diagnosis, alternatives, tests, medicines, risks,
// disclaimer) is part of the model contract and must not drift.
const SystemInstruction = `You are a medical diagnostic assistant trained in clinical reasoning. Your task is to predict possible diseases based on the symptoms provided and recommend medicines.

Instructions:
1. Analyze symptoms along with age, weight, and height.
2. Provide the most likely diagnosis.
3. Suggest alternative conditions if symptoms match multiple conditions.
4. Recommend tests for confirmation.
5. Suggest medicines commonly used for the diagnosed condition (ensure doctor verification).
6. Keep responses concise and accurate.
7. Make the patient aware of any risk they may have (e.g., likelihood of heart disease).

IMPORTANT: Always include a disclaimer that this is AI-generated advice and should not replace professional medical consultation.`

// Client calls the generateContent endpoint with a frozen generation
// configuration.
type Client struct {
	cfg    func() config.GenAIConfig
	client *http.Client
}

func NewClient(cfg func() config.GenAIConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg().Timeout,
		},
	}
}

type generateRequest struct {
	SystemInstruction content          `json:"system_instruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate submits the prompt and returns the generated plain text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := c.cfg()
	if cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		SystemInstruction: content{Parts: []part{{Text: SystemInstruction}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      1.0,
			TopP:             0.95,
			TopK:             40,
			MaxOutputTokens:  8192,
			ResponseMimeType: "text/plain",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", cfg.BaseURL, cfg.Model, cfg.APIKey)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation service returned status %d: %s", resp.StatusCode, string(data))
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", fmt.Errorf("unmarshal generate response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generation service returned no candidates")
	}

	return gr.Candidates[0].Content.Parts[0].Text, nil
}
