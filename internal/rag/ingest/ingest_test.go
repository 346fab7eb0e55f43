package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/domain/kb"
)

type recordingVectorDB struct {
	collections []string
	batchSizes  []int
	upsertErr   error
}

func (r *recordingVectorDB) Search(ctx context.Context, vector []float32) ([]string, []string, error) {
	return nil, nil, nil
}

func (r *recordingVectorDB) GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error) {
	return "", false, nil
}

func (r *recordingVectorDB) SaveToCache(ctx context.Context, id string, vector []float32, answer string) error {
	return nil
}

func (r *recordingVectorDB) CreateCollection(ctx context.Context, collectionName string) error {
	return nil
}

func (r *recordingVectorDB) UpsertBatch(ctx context.Context, collectionName string, chunks []kb.Chunk, vectors [][]float32) error {
	r.collections = append(r.collections, collectionName)
	r.batchSizes = append(r.batchSizes, len(chunks))
	return r.upsertErr
}

type batchEmbedder struct {
	err   error
	calls int
}

func (b *batchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not used")
}

func (b *batchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i)}
	}
	return vectors, nil
}

func TestSplitTextIntoChunks_SmallTextIsOneChunk(t *testing.T) {
	chunks := splitTextIntoChunks("short text", 1000, 150)
	assert.Equal(t, []string{"short text"}, chunks)
}

func TestSplitTextIntoChunks_LongTextSplitsWithOverlap(t *testing.T) {
	paragraph := strings.Repeat("uscis guidance sentence. ", 30) // ~750 chars
	text := paragraph + "\n\n" + paragraph + "\n\n" + paragraph

	chunks := splitTextIntoChunks(text, 1000, 150)
	require.Greater(t, len(chunks), 1)

	// overlap means the tail of one chunk reappears at the head of the next
	tail := chunks[0][len(chunks[0])-50:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail[:20]))
}

func TestPrepareChunks_TagsSourceAndOrder(t *testing.T) {
	text := strings.Repeat("a sentence about work permits. ", 100)
	chunks := PrepareChunks(text, "i-765-guide.txt")

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, "i-765-guide.txt", c.Source)
		assert.Equal(t, i, c.Order)
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestBatchIngest_BatchesAndTargetsKnowledgeBase(t *testing.T) {
	chunks := make([]kb.Chunk, config.IngestBatchSize+25)
	for i := range chunks {
		chunks[i] = kb.Chunk{ID: "id", Text: "text", Source: "doc", Order: i}
	}

	db := &recordingVectorDB{}
	em := &batchEmbedder{}

	err := BatchIngest(context.Background(), chunks, db, em)
	require.NoError(t, err)

	assert.Equal(t, 2, em.calls)
	assert.Equal(t, []int{config.IngestBatchSize, 25}, db.batchSizes)
	for _, name := range db.collections {
		assert.Equal(t, config.KnowledgeBaseCollection, name)
	}
}

func TestBatchIngest_EmbeddingFailureStops(t *testing.T) {
	chunks := []kb.Chunk{{ID: "id", Text: "text"}}
	db := &recordingVectorDB{}

	err := BatchIngest(context.Background(), chunks, db, &batchEmbedder{err: errors.New("quota")})
	require.Error(t, err)
	assert.Empty(t, db.batchSizes)
}
