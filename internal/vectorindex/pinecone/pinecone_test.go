package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nordbot/internal/domain"
)

// fakePinecone serves both the control plane and the data plane.
type fakePinecone struct {
	mu     sync.Mutex
	exists bool
	dim    int
	metric string
	// pending is how many describes report Initializing after a create.
	pending   int
	describes int
	created   map[string]any
	query     map[string]any
	upserted  []any
	srv       *httptest.Server
}

func newFakePinecone(t *testing.T, exists bool) *fakePinecone {
	t.Helper()
	f := &fakePinecone{exists: exists, dim: 768, metric: "cosine"}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	t.Setenv("TEST_PINECONE_KEY", "pc-key")
	return f
}

func (f *fakePinecone) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("Api-Key") != "pc-key" || r.Header.Get("X-Pinecone-API-Version") != apiVersion {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	desc := func() {
		status := map[string]any{"ready": true, "state": "Ready"}
		if f.pending > 0 {
			status = map[string]any{"ready": false, "state": "Initializing"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "nordbot", "dimension": f.dim, "metric": f.metric, "host": f.srv.URL,
			"status": status,
		})
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/indexes/nordbot":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"Resource nordbot not found"}}`))
			return
		}
		f.describes++
		desc()
		if f.pending > 0 {
			f.pending--
		}
	case r.Method == http.MethodPost && r.URL.Path == "/indexes":
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		f.exists = true
		w.WriteHeader(http.StatusCreated)
		desc()
	case r.Method == http.MethodPost && r.URL.Path == "/query":
		_ = json.NewDecoder(r.Body).Decode(&f.query)
		_, _ = w.Write([]byte(`{"matches":[
			{"id":"s3-0","score":0.93,"metadata":{"text":"The Stage 3 has three sound engines...","document_id":"s3"}},
			{"id":"e6-0","score":0.81,"metadata":{"text":"The Electro 6 is lightweight..."}},
			{"id":"x","score":0.5,"metadata":{}}
		],"namespace":""}`))
	case r.Method == http.MethodPost && r.URL.Path == "/vectors/upsert":
		if f.pending > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Vectors []any `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.upserted = append(f.upserted, body.Vectors...)
		_, _ = w.Write([]byte(`{"upsertedCount":1}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestIndex(t *testing.T, f *fakePinecone, host string) *Index {
	t.Helper()
	idx, err := NewIndex(Config{
		Index: "nordbot", APIKeyEnv: "TEST_PINECONE_KEY", ControllerURL: f.srv.URL, Host: host,
		Dimension: 768, Metric: "cosine", Cloud: "aws", Region: "us-east-1",
		ReadyPoll: time.Millisecond,
	})
	require.NoError(t, err)
	return idx
}

func TestIndex_QueryResolvesHostAndKeepsOrder(t *testing.T) {
	f := newFakePinecone(t, true)
	idx := newTestIndex(t, f, "")

	passages, err := idx.Query(context.Background(), []float64{0.1, 0.2}, 5)
	require.NoError(t, err)

	require.Len(t, passages, 3)
	assert.Equal(t, "The Stage 3 has three sound engines...", passages[0].Text)
	assert.Equal(t, 0.93, passages[0].Score)
	assert.Equal(t, "s3", passages[0].Metadata["document_id"])
	assert.Equal(t, "The Electro 6 is lightweight...", passages[1].Text)
	assert.Equal(t, "", passages[2].Text)

	assert.Equal(t, 5.0, f.query["topK"])
	assert.Equal(t, true, f.query["includeMetadata"])
}

func TestIndex_QueryUnknownIndex(t *testing.T) {
	f := newFakePinecone(t, false)
	idx := newTestIndex(t, f, "")

	_, err := idx.Query(context.Background(), []float64{1}, 5)
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestIndex_EnsureCreatesMissingIndex(t *testing.T) {
	f := newFakePinecone(t, false)
	idx := newTestIndex(t, f, "")

	require.NoError(t, idx.Ensure(context.Background(), 768))

	require.NotNil(t, f.created)
	assert.Equal(t, "nordbot", f.created["name"])
	assert.Equal(t, 768.0, f.created["dimension"])
	assert.Equal(t, "cosine", f.created["metric"])
	spec := f.created["spec"].(map[string]any)["serverless"].(map[string]any)
	assert.Equal(t, "aws", spec["cloud"])
	assert.Equal(t, "us-east-1", spec["region"])
}

func TestIndex_EnsureWaitsUntilReady(t *testing.T) {
	f := newFakePinecone(t, false)
	f.pending = 3
	idx := newTestIndex(t, f, "")

	require.NoError(t, idx.Ensure(context.Background(), 768))
	assert.Equal(t, 0, f.pending)
	// three Initializing answers, then Ready
	assert.Equal(t, 4, f.describes)

	chunks := []domain.Chunk{{DocumentID: "s3", ChunkID: "s3-0", Text: "The Stage 3 has three sound engines."}}
	require.NoError(t, idx.Upsert(context.Background(), chunks, [][]float64{{1}}))
	assert.Len(t, f.upserted, 1)
}

func TestIndex_EnsureHonoursContextWhileWaiting(t *testing.T) {
	f := newFakePinecone(t, false)
	f.pending = 1 << 30
	idx := newTestIndex(t, f, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := idx.Ensure(ctx, 768)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIndex_EnsureRejectsMetricMismatch(t *testing.T) {
	f := newFakePinecone(t, true)
	f.metric = "dotproduct"
	idx := newTestIndex(t, f, "")

	err := idx.Ensure(context.Background(), 768)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dotproduct")
}

func TestIndex_EnsureRejectsDimensionMismatch(t *testing.T) {
	f := newFakePinecone(t, true)
	idx := newTestIndex(t, f, "")

	err := idx.Ensure(context.Background(), 1536)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1536")
}

func TestIndex_Upsert(t *testing.T) {
	f := newFakePinecone(t, true)
	idx := newTestIndex(t, f, f.srv.URL)

	chunks := []domain.Chunk{
		{DocumentID: "s3", ChunkID: "s3-0", Text: "The Stage 3 has three sound engines.", Index: 0},
		{DocumentID: "s3", ChunkID: "s3-1", Text: "It weighs 18 kg.", Index: 1},
	}
	require.NoError(t, idx.Upsert(context.Background(), chunks, [][]float64{{1}, {2}}))
	require.Len(t, f.upserted, 2)
	first := f.upserted[0].(map[string]any)
	assert.Equal(t, "s3-0", first["id"])
	assert.Equal(t, "The Stage 3 has three sound engines.", first["metadata"].(map[string]any)["text"])

	err := idx.Upsert(context.Background(), chunks, [][]float64{{1}})
	assert.Error(t, err)
}

func TestIndex_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_ARGUMENT","message":"Vector dimension 3 does not match the dimension of the index 768"}}`))
	}))
	defer srv.Close()
	t.Setenv("TEST_PINECONE_KEY", "pc-key")
	idx, err := NewIndex(Config{Index: "nordbot", APIKeyEnv: "TEST_PINECONE_KEY", Host: srv.URL})
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), []float64{1, 2, 3}, 5)
	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "does not match")
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "https://nordbot-abc.svc.aped-4627-b74a.pinecone.io", normalizeHost("nordbot-abc.svc.aped-4627-b74a.pinecone.io"))
	assert.Equal(t, "http://localhost:5081", normalizeHost("http://localhost:5081/"))
	assert.Equal(t, "", normalizeHost(""))
}
