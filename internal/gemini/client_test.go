package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nordbot/internal/domain"
)

func newTestClient(t *testing.T, model string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_GEMINI_KEY", "secret")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_GEMINI_KEY", Model: model})
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_GEMINI_KEY", Model: "gemini-2.0-flash-exp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_GEMINI_KEY")
}

func TestModelPath(t *testing.T) {
	assert.Equal(t, "models/gemini-2.0-flash-exp", modelPath("gemini-2.0-flash-exp"))
	assert.Equal(t, "models/embedding-001", modelPath("models/embedding-001"))
}

func TestClient_EmbedQuery(t *testing.T) {
	var got embedRequest
	c := newTestClient(t, "models/embedding-001", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/embedding-001:embedContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.25,-0.5,1]}}`))
	})

	vec, err := c.EmbedQuery(context.Background(), "Which Nord is best for live performance?")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5, 1}, vec)
	assert.Equal(t, "RETRIEVAL_QUERY", got.TaskType)
	assert.Equal(t, "models/embedding-001", got.Model)
	assert.Equal(t, "Which Nord is best for live performance?", got.Content.Parts[0].Text)
}

func TestClient_EmbedDocumentTaskType(t *testing.T) {
	var got embedRequest
	c := newTestClient(t, "embedding-001", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embedding":{"values":[1]}}`))
	})

	_, err := c.EmbedDocument(context.Background(), "The Electro 6 is lightweight.")
	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", got.TaskType)
}

func TestClient_EmbedEmpty(t *testing.T) {
	c := newTestClient(t, "embedding-001", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":{"values":[]}}`))
	})
	_, err := c.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}

func TestClient_Generate(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, "gemini-2.0-flash-exp", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash-exp:generateContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"The Stage 3"},{"text":"."}]},"finishReason":"STOP"}]}`))
	})

	text, err := c.Generate(context.Background(), "prompt", domain.GenerationConfig{
		Temperature: 0, TopP: 0.7, MaxOutputTokens: 1096, CandidateCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "The Stage 3.", text)

	gc := raw["generationConfig"].(map[string]any)
	// zero temperature must be sent explicitly
	assert.Contains(t, gc, "temperature")
	assert.Equal(t, 0.0, gc["temperature"])
	assert.Equal(t, 0.7, gc["topP"])
	assert.Equal(t, 1096.0, gc["maxOutputTokens"])
	assert.Equal(t, 1.0, gc["candidateCount"])
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api error",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *domain.APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, 429, apiErr.StatusCode)
				assert.Equal(t, "Resource has been exhausted", apiErr.Message)
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoCandidates)
			},
		},
		{
			name:   "blocked prompt",
			status: http.StatusOK,
			body:   `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "SAFETY")
			},
		},
		{
			name:   "empty parts",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoCandidates)
				assert.Contains(t, err.Error(), "MAX_TOKENS")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "gemini-2.0-flash-exp", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Generate(context.Background(), "prompt", domain.GenerationConfig{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
