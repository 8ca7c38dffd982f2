package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Batching exists purely for throughput: EmbedBatch must be numerically
// equivalent to calling Embed per text, and embedding the same text twice
// must yield identical vectors.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Local models via inference servers
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result is
	// order-preserving and has the same length as the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This is determined by the model and must match the VectorStore's
	// configured dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request. Failures wrap domain.ErrModelUnavailable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
