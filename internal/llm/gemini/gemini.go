package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/llm"
	"github.com/immihelp/formapi/pkg/logging"
)

type Client struct {
	client    *genai.Client
	modelName string
	logger    *logging.Logger
}

func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	logger := logging.NewLogger("llm_gemini")

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		logger.Error("error creating Gemini client", "error", err)
		return nil, apperr.Wrap(apperr.ModelUnavailable, "Could not initialize the Gemini client.", err)
	}

	logger.Info("Gemini client created", "model", modelName)
	return &Client{client: c, modelName: modelName, logger: logger}, nil
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, config.LLMCallTimeout)
	defer cancel()

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.System},
			},
		}
	}

	result, err := c.client.Models.GenerateContent(
		callCtx,
		c.modelName,
		genai.Text(req.Prompt),
		contentConfig,
	)
	if err != nil {
		c.logger.Error("Gemini generation failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.Wrap(apperr.ModelUnavailable, "The language model call timed out.", err)
		}
		return "", apperr.Wrap(apperr.ModelUnavailable, "The language model is currently unavailable.", err)
	}
	if result == nil {
		return "", apperr.New(apperr.ModelUnavailable, "The language model returned no response.")
	}
	return result.Text(), nil
}
