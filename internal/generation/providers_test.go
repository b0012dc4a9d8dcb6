package generation_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alkime/voicepost/internal/generation"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, path string, status int, body string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if inspect != nil {
			var req map[string]any
			if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
				inspect(req)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

const chatReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"hook\":\"Hi.\"}", "refusal": null}
  }],
  "usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`

func TestOpenAI_Complete(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, "/chat/completions", http.StatusOK, chatReply, func(req map[string]any) {
		assert.Equal(t, "gpt-4o", req["model"])
		assert.InDelta(t, 0.7, req["temperature"], 0.0001)
		assert.EqualValues(t, 1024, req["max_tokens"])
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		messages, _ := req["messages"].([]any)
		if assert.Len(t, messages, 2) {
			assert.Equal(t, "system", messages[0].(map[string]any)["role"])
			assert.Equal(t, "user", messages[1].(map[string]any)["role"])
		}
	})

	provider := generation.NewOpenAI("sk-test", openaioption.WithBaseURL(srv.URL+"/"))
	require.True(t, provider.Configured())

	opts := generation.DefaultOptions()
	opts.System = "be brief"

	text, err := provider.Complete(context.Background(), "write", opts)
	require.NoError(t, err)
	assert.Equal(t, `{"hook":"Hi."}`, text)
}

func TestOpenAI_StatusErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			srv := jsonServer(t, "/chat/completions", status,
				`{"error":{"message":"nope","type":"invalid_request_error","code":"x"}}`, nil)

			provider := generation.NewOpenAI("sk-test", openaioption.WithBaseURL(srv.URL+"/"))

			_, err := provider.Complete(context.Background(), "write", generation.DefaultOptions())
			require.Error(t, err)

			var httpErr *generation.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, status, httpErr.StatusCode)
		})
	}
}

const messageReply = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5-20250929",
  "content": [{"type": "text", "text": "{\"hook\":"}, {"type": "text", "text": "\"Hi.\"}"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 1, "output_tokens": 1}
}`

func TestAnthropic_Complete(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, "/v1/messages", http.StatusOK, messageReply, func(req map[string]any) {
		assert.EqualValues(t, 1024, req["max_tokens"])
		assert.InDelta(t, 0.7, req["temperature"], 0.0001)

		system, _ := req["system"].([]any)
		if assert.Len(t, system, 1) {
			assert.Contains(t, system[0].(map[string]any)["text"], "single JSON object")
		}
	})

	provider := generation.NewAnthropic("sk-ant", anthropicoption.WithBaseURL(srv.URL+"/"))

	text, err := provider.Complete(context.Background(), "write", generation.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, `{"hook":"Hi."}`, text)
}

func TestAnthropic_StatusError(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, "/v1/messages", http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, nil)

	provider := generation.NewAnthropic("sk-ant", anthropicoption.WithBaseURL(srv.URL+"/"))

	_, err := provider.Complete(context.Background(), "write", generation.DefaultOptions())

	var httpErr *generation.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestHTTPError_Message(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "provider returned 429: Too Many Requests",
		(&generation.HTTPError{StatusCode: 429}).Error())
	assert.Equal(t, "provider returned 500: boom",
		(&generation.HTTPError{StatusCode: 500, Message: "boom"}).Error())
}
