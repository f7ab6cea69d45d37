// Package api implements the streaming chat-completion backend client used by
// the benchmark executors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shivanshkc/inferbench/pkg/bench"
	"github.com/shivanshkc/inferbench/pkg/httpx"
	"github.com/shivanshkc/inferbench/pkg/streams"
)

// systemPrompt is sent as the system message of every benchmark request.
const systemPrompt = "You are a helpful assistant."

// Client issues streaming chat-completion requests against one base URL.
// It is cheap to share: all fields are immutable after construction and the
// underlying http.Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient returns a Client for the given endpoint and model.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, model: model, httpClient: &http.Client{}}
}

// Generate implements the bench.TextGenerationBackend contract: it performs
// one streaming chat-completion, aggregates the token timing into a single
// response, and sends that response on the sink exactly once — on success and
// on failure alike. Requests are one-shot; there are no retries.
func (c *Client) Generate(
	ctx context.Context, request *bench.TextGenerationRequest, sink chan<- *bench.AggregatedResponse,
) {
	response := bench.NewAggregatedResponse()
	// The response must reach the sink no matter how this call ends;
	// executors count completions through it.
	defer func() { sink <- response }()

	httpResponse, err := c.startStream(ctx, request, response)
	if err != nil {
		logrus.WithError(err).Debug("Failed to start chat completion stream")
		response.Fail()
		return
	}

	c.consumeStream(ctx, httpResponse, response)
}

// startStream issues the POST request and stamps the response's start time.
// Any status other than 200 is a failure; the returned error carries the body.
func (c *Client) startStream(
	ctx context.Context, request *bench.TextGenerationRequest, response *bench.AggregatedResponse,
) (*http.Response, error) {
	endpoint, err := url.JoinPath(c.baseURL, "v1/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to form API endpoint URL: %w", err)
	}

	// A map keeps the JSON formation injection-proof.
	bodyMap := map[string]any{
		"model": c.model,
		"messages": []ChatMessage{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: request.Prompt},
		},
		"max_tokens": request.MaxTokens,
		"stream":     true,
	}
	body, err := json.Marshal(bodyMap)
	if err != nil {
		return nil, fmt.Errorf("failed to form API request body: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)

	// The clock starts when the request goes on the wire.
	response.Start(request.NumPromptTokens)

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer func() { _ = httpResponse.Body.Close() }()
		responseBody, readErr := io.ReadAll(httpResponse.Body)
		if readErr != nil {
			responseBody = []byte("failed to read response body: " + readErr.Error())
		}
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", httpResponse.StatusCode, responseBody)
	}

	return httpResponse, nil
}

// consumeStream reads SSE events until the stream ends, updating the
// aggregated response with each token delta.
//
// Once the response has reached a terminal state, the remaining events are
// drained without effect so the body reader always runs to completion; a
// failure closes the body to hasten that.
func (c *Client) consumeStream(ctx context.Context, httpResponse *http.Response, response *bench.AggregatedResponse) {
	stream := streams.New(httpx.ReadServerSentEvents(ctx, httpResponse.Body))

	for {
		event, ok, err := stream.NextContext(ctx)
		if err != nil {
			// Canceled mid-stream; the SSE reader closes the body itself.
			response.Fail()
			return
		}
		if !ok {
			// Clean stream end. Counted as success even when the server
			// never sent a finish_reason.
			response.Stop()
			return
		}
		if response.Ended() {
			continue // Draining the tail.
		}

		if event.Err != nil {
			logrus.WithError(event.Err).Debug("Transport error on SSE stream")
			response.Fail()
			continue
		}

		// The server reports errors in-band as a JSON payload.
		if strings.HasPrefix(event.Data, `{"error":`) {
			logrus.WithField("payload", event.Data).Debug("Error payload on SSE stream")
			response.Fail()
			_ = httpResponse.Body.Close()
			continue
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			logrus.WithError(err).Debug("Malformed SSE payload")
			response.Fail()
			_ = httpResponse.Body.Close()
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		response.AddTokens(1)
		if chunk.Choices[0].FinishReason != nil {
			response.Stop()
		}
	}
}
