// Package rag answers chat questions from the knowledge base: embed the
// question, try the semantic answer cache, otherwise search the vector
// store and ask the model with the retrieved context.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/immihelp/formapi/internal/adapter/utils"
	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/llm"
	"github.com/immihelp/formapi/internal/metrics"
	"github.com/immihelp/formapi/internal/rag/embedding"
	"github.com/immihelp/formapi/internal/rag/vectordb"
	"github.com/immihelp/formapi/pkg/logging"
)

// Service is what the chat handler calls. It never sees the vector
// store or the model client directly.
type Service interface {
	Answer(ctx context.Context, question string, messageHistory []string) (string, error)
}

type service struct {
	vectorDB    vectordb.DataProcessor
	llmProvider llm.Provider
	embedder    embedding.Embedder
	logger      *logging.Logger
}

func NewService(vector vectordb.DataProcessor, provider llm.Provider, em embedding.Embedder) Service {
	return &service{
		vectorDB:    vector,
		llmProvider: provider,
		embedder:    em,
		logger:      logging.NewLogger("RAG Service"),
	}
}

func (s *service) Answer(ctx context.Context, question string, messageHistory []string) (string, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	vector, err := s.embeddingStep(ctx, question)
	if err != nil {
		return "", apperr.Wrap(apperr.KnowledgeBaseUnavailable, "Could not embed the question.", err)
	}

	if cached, found := s.cacheCheckStep(ctx, vector); found {
		log.Info("answer served from semantic cache")
		return cached, nil
	}

	matches, sources, err := s.searchStep(ctx, vector)
	if err != nil {
		return "", apperr.Wrap(apperr.KnowledgeBaseUnavailable, "The knowledge base is currently unavailable.", err)
	}
	log.Debug("knowledge base searched", "matches", len(matches), "sources", sources)

	answer, err := s.generateStep(ctx, question, matches, messageHistory)
	if err != nil {
		return "", err
	}

	// cache save happens off the request path; a failed save only costs
	// the next identical question a model call
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.vectorDB.SaveToCache(saveCtx, utils.GetNewUUID(), vector, answer); err != nil {
			s.logger.Error("failed to save answer to cache", "error", err)
		}
	}()

	return answer, nil
}

func (s *service) embeddingStep(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("embedding", time.Since(start)) }()
	return s.embedder.Embed(ctx, question)
}

func (s *service) cacheCheckStep(ctx context.Context, vector []float32) (string, bool) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("cache_lookup", time.Since(start)) }()

	answer, found, err := s.vectorDB.GetCachedAnswer(ctx, vector)
	if err != nil {
		// a broken cache must never break the question
		s.logger.Warn("cache lookup failed", "error", err)
		found = false
	}
	metrics.RecordCacheLookup(found)
	return answer, found
}

func (s *service) searchStep(ctx context.Context, vector []float32) ([]string, []string, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("vector_search", time.Since(start)) }()
	return s.vectorDB.Search(ctx, vector)
}

func (s *service) generateStep(ctx context.Context, question string, matches []string, messageHistory []string) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("llm_generation", time.Since(start)) }()

	return s.llmProvider.Generate(ctx, llm.Request{
		System:      config.ChatSystemPrompt,
		Prompt:      buildPrompt(question, matches, messageHistory),
		Temperature: config.ChatTemperature,
	})
}

func buildPrompt(question string, matches []string, messageHistory []string) string {
	var sb strings.Builder

	if len(messageHistory) > 0 {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(strings.Join(messageHistory, "\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Context:\n")
	if len(matches) > 0 {
		sb.WriteString(strings.Join(matches, "\n"))
	} else {
		sb.WriteString("(no matching guidance found)")
	}

	sb.WriteString(fmt.Sprintf("\n\nUser Question: %s", question))
	return sb.String()
}
