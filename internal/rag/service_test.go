package rag

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/domain/kb"
	"github.com/immihelp/formapi/internal/llm"
)

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.vector, m.err
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

type mockVectorDB struct {
	mu sync.Mutex

	cachedAnswer string
	cacheHit     bool
	cacheErr     error

	matches   []string
	sources   []string
	searchErr error

	searchCalls int
	saved       chan string
}

func (m *mockVectorDB) Search(ctx context.Context, vector []float32) ([]string, []string, error) {
	m.mu.Lock()
	m.searchCalls++
	m.mu.Unlock()
	return m.matches, m.sources, m.searchErr
}

func (m *mockVectorDB) GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error) {
	return m.cachedAnswer, m.cacheHit, m.cacheErr
}

func (m *mockVectorDB) SaveToCache(ctx context.Context, id string, vector []float32, answer string) error {
	if m.saved != nil {
		m.saved <- answer
	}
	return nil
}

func (m *mockVectorDB) CreateCollection(ctx context.Context, collectionName string) error {
	return nil
}

func (m *mockVectorDB) UpsertBatch(ctx context.Context, collectionName string, chunks []kb.Chunk, vectors [][]float32) error {
	return nil
}

type mockLLM struct {
	onGenerate func(req llm.Request) (string, error)
	calls      int
}

func (m *mockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.calls++
	if m.onGenerate != nil {
		return m.onGenerate(req)
	}
	return "generated answer", nil
}

func TestAnswer_CacheHitSkipsSearchAndModel(t *testing.T) {
	db := &mockVectorDB{cachedAnswer: "cached answer", cacheHit: true}
	provider := &mockLLM{}
	svc := NewService(db, provider, &mockEmbedder{vector: []float32{0.1}})

	got, err := svc.Answer(context.Background(), "What is an EAD?", nil)
	require.NoError(t, err)

	assert.Equal(t, "cached answer", got)
	assert.Zero(t, db.searchCalls)
	assert.Zero(t, provider.calls)
}

func TestAnswer_MissSearchesAndGenerates(t *testing.T) {
	db := &mockVectorDB{
		matches: []string{"Form I-765 is the application for employment authorization."},
		sources: []string{"i-765-instructions.pdf"},
		saved:   make(chan string, 1),
	}
	var captured llm.Request
	provider := &mockLLM{onGenerate: func(req llm.Request) (string, error) {
		captured = req
		return "You file Form I-765.", nil
	}}
	svc := NewService(db, provider, &mockEmbedder{vector: []float32{0.1}})

	got, err := svc.Answer(context.Background(), "How do I apply for a work permit?", []string{"Q: hi A: hello"})
	require.NoError(t, err)
	assert.Equal(t, "You file Form I-765.", got)

	assert.Contains(t, captured.Prompt, "Form I-765 is the application")
	assert.Contains(t, captured.Prompt, "How do I apply for a work permit?")
	assert.Contains(t, captured.Prompt, "Q: hi A: hello")
	assert.NotEmpty(t, captured.System)

	select {
	case saved := <-db.saved:
		assert.Equal(t, "You file Form I-765.", saved)
	case <-time.After(2 * time.Second):
		t.Fatal("answer was never written to the cache")
	}
}

func TestAnswer_CacheErrorDoesNotFailTheQuestion(t *testing.T) {
	db := &mockVectorDB{cacheErr: errors.New("cache down"), matches: []string{"ctx"}}
	provider := &mockLLM{}
	svc := NewService(db, provider, &mockEmbedder{vector: []float32{0.1}})

	got, err := svc.Answer(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, "generated answer", got)
	assert.Equal(t, 1, db.searchCalls)
}

func TestAnswer_EmbeddingFailure(t *testing.T) {
	svc := NewService(&mockVectorDB{}, &mockLLM{}, &mockEmbedder{err: errors.New("quota")})

	_, err := svc.Answer(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KnowledgeBaseUnavailable, apperr.KindOf(err))
}

func TestAnswer_SearchFailure(t *testing.T) {
	db := &mockVectorDB{searchErr: errors.New("qdrant unreachable")}
	svc := NewService(db, &mockLLM{}, &mockEmbedder{vector: []float32{0.1}})

	_, err := svc.Answer(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KnowledgeBaseUnavailable, apperr.KindOf(err))
}

func TestAnswer_ModelFailurePassesThrough(t *testing.T) {
	db := &mockVectorDB{matches: []string{"ctx"}}
	provider := &mockLLM{onGenerate: func(req llm.Request) (string, error) {
		return "", apperr.Wrap(apperr.ModelUnavailable, "The language model is currently unavailable.", errors.New("503"))
	}}
	svc := NewService(db, provider, &mockEmbedder{vector: []float32{0.1}})

	_, err := svc.Answer(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.ModelUnavailable, apperr.KindOf(err))
}
