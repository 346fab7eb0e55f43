package vectordb

import (
	"context"

	"github.com/immihelp/formapi/internal/domain/kb"
)

// DataProcessor is what the RAG service and the ingestion pipeline need
// from a vector store. Search returns matched passages and their source
// document names, in score order.
type DataProcessor interface {
	Search(ctx context.Context, vector []float32) ([]string, []string, error)
	GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error)
	SaveToCache(ctx context.Context, id string, vector []float32, answer string) error

	CreateCollection(ctx context.Context, collectionName string) error
	UpsertBatch(ctx context.Context, collectionName string, chunks []kb.Chunk, vectors [][]float32) error
}
