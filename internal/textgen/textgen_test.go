package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestGeminiGenerateTextReturnsFirstCandidateText(t *testing.T) {
	var prompt string
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body.Contents, 1) {
			assert.Equal(t, "user", body.Contents[0].Role)
			prompt = body.Contents[0].Parts[0].Text
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Recycle in blue bin"}]}}]}`))
	})

	gen, err := New(context.Background(), Config{APIKey: "test-key", Endpoint: server.URL}, zap.NewNop())
	require.NoError(t, err)

	text, err := gen.GenerateText(context.Background(), "How do I dispose of an aluminum can?")
	require.NoError(t, err)
	assert.Equal(t, "Recycle in blue bin", text)
	assert.Equal(t, "How do I dispose of an aluminum can?", prompt)
}

func TestGeminiGenerateTextRejectsMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"no candidates":   `{}`,
		"empty list":      `{"candidates":[]}`,
		"no content":      `{"candidates":[{"finishReason":"SAFETY"}]}`,
		"no parts":        `{"candidates":[{"content":{"role":"model"}}]}`,
		"empty text part": `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			gen, err := NewGeminiGenerator(context.Background(), Config{APIKey: "k", Model: "gemini-pro", Endpoint: server.URL}, zap.NewNop())
			require.NoError(t, err)

			_, err = gen.GenerateText(context.Background(), "prompt")
			require.ErrorIs(t, err, classifier.ErrMalformedResponse)
		})
	}
}

func TestGeminiGenerateTextSurfacesServiceErrors(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	})

	gen, err := NewGeminiGenerator(context.Background(), Config{APIKey: "k", Model: "models/gemini-pro", Endpoint: server.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = gen.GenerateText(context.Background(), "prompt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, classifier.ErrMalformedResponse)
}

func TestOpenAIGenerateText(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			assert.Equal(t, DefaultOpenAIModel, body.Model)
			assert.Len(t, body.Messages, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Green bin."},"finish_reason":"stop"}]}`))
	})

	gen, err := New(context.Background(), Config{Provider: "openai", APIKey: "test-key", Endpoint: server.URL}, zap.NewNop())
	require.NoError(t, err)

	text, err := gen.GenerateText(context.Background(), "banana peel?")
	require.NoError(t, err)
	assert.Equal(t, "Green bin.", text)
}

func TestOpenAIGenerateTextRejectsEmptyChoices(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	})

	gen := NewOpenAIGenerator(Config{APIKey: "k", Endpoint: server.URL + "/"}, zap.NewNop())
	_, err := gen.GenerateText(context.Background(), "prompt")
	require.ErrorIs(t, err, classifier.ErrMalformedResponse)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "llama"}, zap.NewNop())
	require.ErrorContains(t, err, "unknown provider")
}
