package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/inferbench/pkg/bench"
)

// mockRoundTripper is a mock implementation of http.RoundTripper. It lets
// tests shape the server's response (status, SSE body, transport errors)
// without real network calls.
type mockRoundTripper struct {
	responseFunc func(*http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.responseFunc(req)
}

// newTestClient builds a client whose HTTP transport is the given mock.
func newTestClient(t *testing.T, rt http.RoundTripper) *Client {
	t.Helper()
	client := NewClient("http://localhost:8000", "test-key", "test-model")
	client.httpClient = &http.Client{Transport: rt}
	return client
}

// generate runs one Generate call and returns the emitted response, failing
// the test if none arrives.
func generate(t *testing.T, client *Client, ctx context.Context) *bench.AggregatedResponse {
	t.Helper()

	request, err := bench.NewTextGenerationRequest("hello there", 2, 16)
	require.NoError(t, err)

	sink := make(chan *bench.AggregatedResponse, 1)
	client.Generate(ctx, request, sink)

	select {
	case response := <-sink:
		return response
	case <-time.After(2 * time.Second):
		t.Fatal("no aggregated response was emitted")
		return nil
	}
}

// sseBody builds an SSE response body from the given data payloads.
func sseBody(payloads ...string) io.ReadCloser {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n")
	}
	return io.NopCloser(strings.NewReader(b.String()))
}

func okResponse(body io.ReadCloser) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: body}
}

func TestClient_Generate(t *testing.T) {
	chunk := `{"choices":[{"delta":{"content":"tok"},"finish_reason":null}]}`
	finalChunk := `{"choices":[{"delta":{"content":""},"finish_reason":"stop"}]}`

	t.Run("Successful Stream With Finish Reason", func(t *testing.T) {
		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return okResponse(sseBody(chunk, chunk, finalChunk, "[DONE]")), nil
			},
		})

		response := generate(t, client, context.Background())
		assert.False(t, response.Failed)
		assert.True(t, response.Ended())
		assert.Equal(t, 3, response.NumGeneratedTokens, "the finish chunk also counts a token")
		assert.Equal(t, 2, response.NumPromptTokens)
		assert.Len(t, response.TimesBetweenTokens, 3)
	})

	t.Run("Stream End Without Finish Reason Is Success", func(t *testing.T) {
		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return okResponse(sseBody(chunk, chunk)), nil
			},
		})

		response := generate(t, client, context.Background())
		assert.False(t, response.Failed)
		assert.True(t, response.Ended())
		assert.Equal(t, 2, response.NumGeneratedTokens)
	})

	t.Run("Error Payload Fails The Request", func(t *testing.T) {
		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return okResponse(sseBody(`{"error":"model overloaded"}`)), nil
			},
		})

		response := generate(t, client, context.Background())
		assert.True(t, response.Failed)
		assert.True(t, response.Ended(), "a failed response must carry an end time")
		assert.Zero(t, response.NumGeneratedTokens)
	})

	t.Run("Non-200 Status Fails The Request", func(t *testing.T) {
		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusServiceUnavailable,
					Body:       io.NopCloser(strings.NewReader("overloaded")),
				}, nil
			},
		})

		response := generate(t, client, context.Background())
		assert.True(t, response.Failed)
		assert.True(t, response.Ended())
	})

	t.Run("Transport Error Fails The Request", func(t *testing.T) {
		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
		})

		response := generate(t, client, context.Background())
		assert.True(t, response.Failed)
		assert.True(t, response.Ended())
	})

	t.Run("Malformed Payload Fails The Request", func(t *testing.T) {
		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return okResponse(sseBody(chunk, `{"choices":`)), nil
			},
		})

		response := generate(t, client, context.Background())
		assert.True(t, response.Failed)
		// The good chunk before the malformed one was still counted.
		assert.Equal(t, 1, response.NumGeneratedTokens)
	})

	t.Run("Canceled Context Fails The Request", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				return nil, ctx.Err()
			},
		})

		response := generate(t, client, ctx)
		assert.True(t, response.Failed)
	})

	t.Run("Request Shape", func(t *testing.T) {
		var captured *http.Request
		var capturedBody []byte

		client := newTestClient(t, &mockRoundTripper{
			responseFunc: func(r *http.Request) (*http.Response, error) {
				captured = r
				capturedBody, _ = io.ReadAll(r.Body)
				return okResponse(sseBody("[DONE]")), nil
			},
		})

		generate(t, client, context.Background())
		require.NotNil(t, captured)

		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "/v1/chat/completions", captured.URL.Path)
		assert.Equal(t, "Bearer test-key", captured.Header.Get("Authorization"))
		assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))

		var body struct {
			Model     string        `json:"model"`
			Messages  []ChatMessage `json:"messages"`
			MaxTokens int           `json:"max_tokens"`
			Stream    bool          `json:"stream"`
		}
		require.NoError(t, json.Unmarshal(capturedBody, &body))

		assert.Equal(t, "test-model", body.Model)
		assert.Equal(t, 16, body.MaxTokens)
		assert.True(t, body.Stream)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, RoleSystem, body.Messages[0].Role)
		assert.Equal(t, RoleUser, body.Messages[1].Role)
		assert.Equal(t, "hello there", body.Messages[1].Content)
	})
}
