// Package ingest turns source documents into embedded chunks in the
// knowledge-base collection. It is used by the kbloader command, not by
// the request path.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/immihelp/formapi/internal/adapter/utils"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/domain/kb"
	"github.com/immihelp/formapi/internal/rag/embedding"
	"github.com/immihelp/formapi/internal/rag/vectordb"
	"github.com/immihelp/formapi/pkg/logging"
)

// splitTextIntoChunks splits on the most meaningful separator present,
// carrying an overlap tail between neighbouring chunks.
func splitTextIntoChunks(text string, limit int, overlap int) []string {
	var chunks []string

	if len(text) <= limit {
		return []string{text}
	}

	// Separators ordered from "best" to "worst" for semantic meaning
	separators := []string{"\n\n", "\n", ". ", " ", ""}

	var splitChar string
	found := false
	for _, s := range separators {
		if strings.Contains(text, s) {
			splitChar = s
			found = true
			break
		}
	}

	if !found {
		// Hard cut if no separator found (rare)
		return []string{text[:limit]}
	}

	parts := strings.Split(text, splitChar)
	var currentChunk strings.Builder

	for _, part := range parts {
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 && splitChar != "" {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

// PrepareChunks splits one document's text and tags every chunk with
// its source name and order.
func PrepareChunks(text string, source string) []kb.Chunk {
	stringChunks := splitTextIntoChunks(text, config.ChunkSizeChars, config.ChunkOverlapChars)

	chunks := make([]kb.Chunk, 0, len(stringChunks))
	for i, t := range stringChunks {
		if strings.TrimSpace(t) == "" {
			continue
		}
		chunks = append(chunks, kb.Chunk{
			ID:     utils.GetNewUUID(),
			Text:   t,
			Source: source,
			Order:  i,
		})
	}
	return chunks
}

// BatchIngest embeds and upserts chunks in fixed-size batches so one
// giant document never turns into one giant API call.
func BatchIngest(ctx context.Context, chunks []kb.Chunk, vectorDatabase vectordb.DataProcessor, embedder embedding.Embedder) error {
	logger := logging.NewLogger("Batch Ingestion")

	for i := 0; i < len(chunks); i += config.IngestBatchSize {
		end := i + config.IngestBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		currentBatch := chunks[i:end]

		texts := make([]string, 0, len(currentBatch))
		for _, c := range currentBatch {
			texts = append(texts, c.Text)
		}

		logger.Debug("starting embedding call", "batchStart", i, "batchSize", len(currentBatch))
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}

		if err := vectorDatabase.UpsertBatch(ctx, config.KnowledgeBaseCollection, currentBatch, vectors); err != nil {
			return fmt.Errorf("upserting to qdrant failed: %w", err)
		}
	}

	return nil
}
