package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLLMService(LLMConfig{BaseURL: srv.URL + "/"})
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
}

func TestGenerate(t *testing.T) {
	var raw map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"response":"rewritten query","done":true}`))
	})

	out, err := svc.Generate(context.Background(), "prompt", driven.GenerateOptions{MaxTokens: 40, StopWords: []string{"\n"}})

	require.NoError(t, err)
	assert.Equal(t, "rewritten query", out)
	assert.Equal(t, false, raw["stream"])
	opts := raw["options"].(map[string]any)
	assert.Equal(t, float64(40), opts["num_predict"])
	assert.Equal(t, float64(0), opts["temperature"])
	assert.Equal(t, []any{"\n"}, opts["stop"])
}

func TestChat(t *testing.T) {
	var got chatRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Use GetUser [1]."},"done":true}`))
	})

	out, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "Answer from context."},
		{Role: driven.RoleUser, Content: "How do I fetch a user?"},
	}, driven.ChatOptions{Temperature: 0.1})

	require.NoError(t, err)
	assert.Equal(t, "Use GetUser [1].", out)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.InDelta(t, 0.1, got.Options.Temperature, 1e-9)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"missing model", 404, `{"error":"model 'llama3.2' not found"}`, domain.ErrNotFound},
		{"server error", 500, `{"error":"boom"}`, domain.ErrTemporary},
		{"malformed", 200, `not json`, domain.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}}, driven.ChatOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPing(t *testing.T) {
	t.Run("model present", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
		})
		assert.NoError(t, svc.Ping(context.Background()))
	})

	t.Run("model missing", func(t *testing.T) {
		svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"models":[{"name":"mistral:latest"}]}`))
		})
		err := svc.Ping(context.Background())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, domain.IsConfiguration(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		svc := NewLLMService(LLMConfig{BaseURL: "http://127.0.0.1:1"})
		assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrTemporary)
	})
}
