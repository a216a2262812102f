// Package gemini backs llm.Generator with Vertex AI Gemini models.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const DefaultModel = "gemini-1.5-flash"

type Config struct {
	Project     string
	Region      string
	Model       string
	Temperature float32
}

type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

// New connects to Vertex AI. Without a project the client is still
// returned, and every Generate call fails with common.ErrMissingCredentials.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	c := &Client{cfg: cfg, logger: logger}
	if cfg.Project == "" {
		logger.Warn("llm.gemini.unconfigured", "reason", "GOOGLE_CLOUD_PROJECT not set")
		return c, nil
	}
	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	c.client = client
	logger.Info("llm.gemini.ready", "project", cfg.Project, "region", cfg.Region, "model", cfg.Model)
	return c, nil
}

// Generate implements llm.Generator. A model handle is built per call since
// the system instruction differs between the parser and the auditor.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini: %w", common.ErrMissingCredentials)
	}
	start := time.Now()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](c.cfg.Temperature),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("llm.gemini.generate_error", "model", c.cfg.Model, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	c.logger.Debug("llm.gemini.ok", "model", c.cfg.Model, "bytes", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
