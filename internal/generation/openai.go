package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client     openai.Client
	model      shared.ChatModel
	configured bool
}

// NewOpenAI creates an OpenAI provider using gpt-4o. SDK retries are off;
// opts are applied after the API key and may turn them back on.
func NewOpenAI(apiKey string, opts ...option.RequestOption) *OpenAI {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)

	return &OpenAI{
		client:     openai.NewClient(clientOpts...),
		model:      openai.ChatModelGPT4o,
		configured: apiKey != "",
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Configured() bool { return p.configured }

func (p *OpenAI) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}

	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       p.model,
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}

	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	if opts.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &HTTPError{StatusCode: apiErr.StatusCode, Err: err}
		}

		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from OpenAI API")
	}

	return resp.Choices[0].Message.Content, nil
}
