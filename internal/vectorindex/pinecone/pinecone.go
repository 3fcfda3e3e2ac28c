// Package pinecone is a minimal REST client to a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"nordbot/internal/domain"
)

const apiVersion = "2024-07"

// Config contains connection and bootstrap details for one index.
type Config struct {
	Index         string
	APIKeyEnv     string
	ControllerURL string
	// Host is the data-plane host. When empty it is looked up by index name.
	Host      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
	Timeout   time.Duration
	// ReadyPoll is the wait between readiness checks after creating the index.
	ReadyPoll time.Duration
}

// Index queries and writes one Pinecone index.
type Index struct {
	cfg    Config
	apiKey string
	client *http.Client

	mu   sync.Mutex
	host string
}

// ErrIndexNotFound is returned when the named index does not exist.
var ErrIndexNotFound = errors.New("pinecone index not found")

func NewIndex(cfg Config) (*Index, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = "https://api.pinecone.io"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = 2 * time.Second
	}
	return &Index{
		cfg:    cfg,
		apiKey: key,
		client: &http.Client{Timeout: timeout},
		host:   normalizeHost(cfg.Host),
	}, nil
}

func (x *Index) Name() string { return "pinecone/" + x.cfg.Index }

type match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Query returns the topK nearest passages with metadata, in the order
// Pinecone returns them.
func (x *Index) Query(ctx context.Context, vector []float64, topK int) ([]domain.Passage, error) {
	if topK <= 0 {
		topK = 5
	}
	host, err := x.dataHost(ctx)
	if err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"includeValues":   false,
	}
	var resp struct {
		Matches []match `json:"matches"`
	}
	if err := x.do(ctx, http.MethodPost, host+"/query", req, &resp); err != nil {
		return nil, err
	}
	passages := make([]domain.Passage, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		p := domain.Passage{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
		if v, ok := m.Metadata["text"].(string); ok {
			p.Text = v
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// Upsert writes chunk vectors with their text as metadata.
func (x *Index) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	host, err := x.dataHost(ctx)
	if err != nil {
		return err
	}
	records := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		records[i] = map[string]any{
			"id":     ch.ChunkID,
			"values": vectors[i],
			"metadata": map[string]any{
				"document_id": ch.DocumentID,
				"index":       ch.Index,
				"text":        ch.Text,
			},
		}
	}
	return x.do(ctx, http.MethodPost, host+"/vectors/upsert", map[string]any{"vectors": records}, nil)
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Ensure creates the serverless index when it does not exist yet and waits
// until it reports ready. An existing index must match dimension and metric.
func (x *Index) Ensure(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if x.cfg.Dimension > 0 && x.cfg.Dimension != dimension {
		return fmt.Errorf("embedding dimension %d does not match configured index dimension %d", dimension, x.cfg.Dimension)
	}
	desc, err := x.describe(ctx)
	switch {
	case errors.Is(err, ErrIndexNotFound):
		body := map[string]any{
			"name":      x.cfg.Index,
			"dimension": dimension,
			"metric":    x.cfg.Metric,
			"spec": map[string]any{
				"serverless": map[string]any{
					"cloud":  x.cfg.Cloud,
					"region": x.cfg.Region,
				},
			},
		}
		var created indexDescription
		if err := x.do(ctx, http.MethodPost, x.controller("/indexes"), body, &created); err != nil {
			return fmt.Errorf("create index %s: %w", x.cfg.Index, err)
		}
		if created.Status.Ready {
			x.setHost(created.Host)
			return nil
		}
		return x.waitReady(ctx)
	case err != nil:
		return err
	}
	if desc.Dimension != dimension {
		return fmt.Errorf("index %s has dimension %d, embeddings have %d", x.cfg.Index, desc.Dimension, dimension)
	}
	if x.cfg.Metric != "" && !strings.EqualFold(desc.Metric, x.cfg.Metric) {
		return fmt.Errorf("index %s uses metric %q, configured %q", x.cfg.Index, desc.Metric, x.cfg.Metric)
	}
	if !desc.Status.Ready {
		return x.waitReady(ctx)
	}
	x.setHost(desc.Host)
	return nil
}

// waitReady describes the index every ReadyPoll until it is ready or ctx ends.
func (x *Index) waitReady(ctx context.Context) error {
	t := time.NewTicker(x.cfg.ReadyPoll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("index %s not ready: %w", x.cfg.Index, ctx.Err())
		case <-t.C:
		}
		desc, err := x.describe(ctx)
		if err != nil {
			return err
		}
		if desc.Status.Ready {
			x.setHost(desc.Host)
			return nil
		}
	}
}

func (x *Index) describe(ctx context.Context) (*indexDescription, error) {
	var desc indexDescription
	err := x.do(ctx, http.MethodGet, x.controller("/indexes/"+x.cfg.Index), nil, &desc)
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, x.cfg.Index)
	}
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func (x *Index) dataHost(ctx context.Context) (string, error) {
	x.mu.Lock()
	host := x.host
	x.mu.Unlock()
	if host != "" {
		return host, nil
	}
	desc, err := x.describe(ctx)
	if err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %s has no host yet", x.cfg.Index)
	}
	x.setHost(desc.Host)
	return normalizeHost(desc.Host), nil
}

func (x *Index) setHost(h string) {
	if h == "" {
		return
	}
	x.mu.Lock()
	x.host = normalizeHost(h)
	x.mu.Unlock()
}

func (x *Index) controller(path string) string {
	return strings.TrimRight(x.cfg.ControllerURL, "/") + path
}

// normalizeHost adds the https scheme Pinecone omits from index hosts.
func normalizeHost(h string) string {
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return strings.TrimRight(h, "/")
}

func (x *Index) do(ctx context.Context, method, url string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", x.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(payload))
		var eb struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(payload, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		return &domain.APIError{Provider: "pinecone", StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(payload) > 0 {
		return json.Unmarshal(payload, out)
	}
	return nil
}
