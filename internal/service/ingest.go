package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"nordbot/internal/domain"
)

// ErrNoDocuments is returned when no .txt file matches the ingest inputs.
var ErrNoDocuments = errors.New("no .txt documents found")

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Documents int
	Chunks    int
	Dimension int
}

// Ingestor loads manuals into the vector index so the orchestrator can
// retrieve them.
type Ingestor struct {
	chunker   domain.Chunker
	embedder  domain.Embedder
	index     domain.VectorIndex
	batchSize int
	log       *zap.Logger
}

func NewIngestor(chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{chunker: chunker, embedder: embedder, index: index, batchSize: 100, log: log}
}

// IngestDocuments chunks, embeds and upserts every .txt file named by paths.
// Paths may be globs.
func (s *Ingestor) IngestDocuments(ctx context.Context, paths []string) (IngestReport, error) {
	documents, err := loadDocuments(paths)
	if err != nil {
		return IngestReport{}, err
	}

	var chunks []domain.Chunk
	for _, d := range documents {
		cs, err := s.chunker.Chunk(d)
		if err != nil {
			return IngestReport{}, fmt.Errorf("chunk %s: %w", d.Path, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return IngestReport{}, fmt.Errorf("%w: documents contain no text", ErrNoDocuments)
	}

	vectors := make([][]float64, len(chunks))
	for i := range chunks {
		vec, err := s.embedder.EmbedDocument(ctx, chunks[i].Text)
		if err != nil {
			return IngestReport{}, domain.NewStageError(domain.StageEmbedding, s.embedder.Name(), err)
		}
		vectors[i] = vec
	}
	dim := len(vectors[0])

	if err := s.index.Ensure(ctx, dim); err != nil {
		return IngestReport{}, fmt.Errorf("ensure %s index: %w", s.index.Name(), err)
	}
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		if err := s.index.Upsert(ctx, chunks[start:end], vectors[start:end]); err != nil {
			return IngestReport{}, fmt.Errorf("upsert into %s: %w", s.index.Name(), err)
		}
		s.log.Debug("batch upserted", zap.Int("from", start), zap.Int("to", end))
	}

	report := IngestReport{Documents: len(documents), Chunks: len(chunks), Dimension: dim}
	s.log.Info("ingest finished",
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("dimension", report.Dimension),
		zap.String("index", s.index.Name()),
	)
	return report, nil
}

func loadDocuments(paths []string) ([]domain.Document, error) {
	var documents []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			documents = append(documents, domain.Document{ID: hashString(m), Path: m, Content: string(data)})
		}
	}
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	return documents, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
