package qdrantdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/domain/kb"
	"github.com/immihelp/formapi/pkg/logging"
)

var dimension = uint64(config.EmbeddingOutputDimensionality)

type ClientHolder struct {
	QObj   *qdrant.Client
	logger *logging.Logger
}

// NewClientHolder connects to Qdrant and makes sure the knowledge-base
// and answer-cache collections exist. The caller owns the Close.
func NewClientHolder(ctx context.Context, host string, port int) (*ClientHolder, error) {
	logger := logging.NewLogger("Qdrant")

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate qdrant client", "error", err)
		return nil, err
	}

	holder := &ClientHolder{QObj: client, logger: logger}
	for _, name := range []string{config.KnowledgeBaseCollection, config.AnswerCacheCollection} {
		if err := holder.CreateCollection(ctx, name); err != nil {
			logger.Error("could not create collection", "collectionName", name, "error", err)
			return nil, err
		}
	}
	return holder, nil
}

func (db *ClientHolder) Close() {
	if err := db.QObj.Close(); err != nil {
		db.logger.Error("could not close qdrant client", "error", err)
	}
}

func (db *ClientHolder) Search(ctx context.Context, vector []float32) ([]string, []string, error) {
	loggr := db.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: config.KnowledgeBaseCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(config.SearchTopK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("error querying qdrant", "error", err)
		return nil, nil, err
	}

	var matches []string
	var sources []string
	for _, hit := range result {
		content := hit.Payload["content"].GetStringValue()
		source := hit.Payload["source"].GetStringValue()

		matches = append(matches, content)
		sources = append(sources, source)
	}

	loggr.Debug("knowledge base search done", "matches", len(matches))
	return matches, sources, nil
}

func (db *ClientHolder) CreateCollection(ctx context.Context, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := db.QObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (db *ClientHolder) UpsertBatch(ctx context.Context, collectionName string, chunks []kb.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":     chunk.Text,
				"source":      chunk.Source,
				"chunk_order": chunk.Order,
				"chunk_id":    chunk.ID,
			}),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}
