package domain

import "context"

// Document represents a single text file loaded for ingestion.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// Passage is a stored chunk returned by the vector index for a query.
// Text is taken from the match metadata "text" field.
type Passage struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is one displayed chat message.
type TranscriptEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig holds the sampling parameters of a single generation stage.
type GenerationConfig struct {
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
	CandidateCount  int
}

// Embedder converts free text into a numeric vector representation.
// Queries and stored documents may be embedded with different task hints.
type Embedder interface {
	Name() string
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedDocument(ctx context.Context, text string) ([]float64, error)
}

// Searcher returns the nearest stored passages for a query vector,
// ordered by descending similarity.
type Searcher interface {
	Query(ctx context.Context, vector []float64, topK int) ([]Passage, error)
}

// VectorIndex is a Searcher that can also be bootstrapped and written to.
type VectorIndex interface {
	Searcher
	Name() string
	Ensure(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
