// Package kb holds the knowledge-base document model shared by the
// ingestion pipeline and the vector store.
package kb

// Chunk is one embeddable slice of a source document.
type Chunk struct {
	ID     string
	Text   string
	Source string
	Order  int
}
