package openaillm

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/llm"
	"github.com/immihelp/formapi/pkg/logging"
)

// one pooled transport for all completions traffic
var pooledTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

type Client struct {
	client    openai.Client
	modelName string
	logger    *logging.Logger
}

func NewClient(apiKey string, modelName string) *Client {
	logger := logging.NewLogger("llm_openai")
	c := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Transport: pooledTransport}),
	)
	logger.Info("OpenAI client created", "model", modelName)
	return &Client{client: c, modelName: modelName, logger: logger}
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, config.LLMCallTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.modelName),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	})
	if err != nil {
		c.logger.Error("OpenAI completion failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.Wrap(apperr.ModelUnavailable, "The language model call timed out.", err)
		}
		return "", apperr.Wrap(apperr.ModelUnavailable, "The language model is currently unavailable.", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.ModelUnavailable, "The language model returned no choices.")
	}
	return resp.Choices[0].Message.Content, nil
}
