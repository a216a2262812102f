// Package gigachat backs llm.Generator with Sber GigaChat.
package gigachat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Role1776/gigago"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const DefaultModel = "GigaChat"

// low temperature keeps repeated parses of a document stable
const temperature = 0.1

type Config struct {
	APIKey             string
	Scope              string // GIGACHAT_API_PERS by default
	Model              string
	InsecureSkipVerify bool
}

type Client struct {
	cfg    Config
	client *gigago.Client
	logger *slog.Logger
}

// New authorizes against GigaChat. An empty key yields a client whose
// calls fail with common.ErrMissingCredentials.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Scope == "" {
		cfg.Scope = "GIGACHAT_API_PERS"
	}
	c := &Client{cfg: cfg, logger: logger}
	if cfg.APIKey == "" {
		logger.Warn("llm.gigachat.unconfigured", "reason", "LLM_API_KEY not set")
		return c, nil
	}

	opts := []gigago.Option{gigago.WithCustomScope(cfg.Scope)}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}
	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gigachat: %w", common.ErrMissingCredentials)
	}
	start := time.Now()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = system
	model.Temperature = temperature

	resp, err := model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	})
	if err != nil {
		c.logger.Error("llm.gigachat.generate_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gigachat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gigachat: no response from LLM")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("llm.gigachat.ok", "bytes", len(content), "elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
