package googleembed

import (
	"context"
	"time"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/pkg/logging"
)

var dimension = config.EmbeddingOutputDimensionality

type Client struct {
	genAi  *genai.Client
	model  string
	logger *logging.Logger
}

func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	logger := logging.NewLogger("google_embedding")

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		logger.Error("error creating Google embedding client", "error", err)
		return nil, apperr.Wrap(apperr.ModelUnavailable, "Could not initialize the embedding client.", err)
	}

	logger.Info("Google embedding client created", "model", modelName)
	return &Client{genAi: c, model: modelName, logger: logger}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := c.doCall(ctx, genai.Text(text))
	if err != nil {
		c.logger.Error("error getting embedding from Google", "error", err)
		return nil, apperr.Wrap(apperr.ModelUnavailable, "The embedding model is currently unavailable.", err)
	}
	return result.Embeddings[0].Values, nil
}

// EmbedBatch embeds all texts in one call, with a single retry when the
// API reports a rate limit.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := c.doCall(ctx, getContent(texts))
	if err != nil {
		if isRateLimited(err) {
			c.logger.Warn("rate limit hit, retrying in 5 seconds", "error", err)
			time.Sleep(5 * time.Second)
			res, err = c.doCall(ctx, getContent(texts))
		}
		if err != nil {
			c.logger.Error("error getting batch embeddings from Google", "error", err)
			return nil, apperr.Wrap(apperr.ModelUnavailable, "The embedding model is currently unavailable.", err)
		}
	}

	var vectors [][]float32
	for _, r := range res.Embeddings {
		vectors = append(vectors, r.Values)
	}
	return vectors, nil
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
		TaskType:             "RETRIEVAL_DOCUMENT",
	})
}

func getContent(texts []string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: t}},
		})
	}
	return contents
}

func isRateLimited(err error) bool {
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}
