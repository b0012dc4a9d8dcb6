package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// Anthropic generates text with the Messages API.
type Anthropic struct {
	client     anthropic.Client
	model      anthropic.Model
	configured bool
}

// NewAnthropic creates an Anthropic provider with SDK retries off. opts are
// applied after the API key.
func NewAnthropic(apiKey string, opts ...option.RequestOption) *Anthropic {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)

	return &Anthropic{
		client:     anthropic.NewClient(clientOpts...),
		model:      anthropic.ModelClaudeSonnet4_5_20250929,
		configured: apiKey != "",
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) Configured() bool { return p.configured }

func (p *Anthropic) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(DefaultOptions().MaxTokens)
	}

	system := opts.System
	if opts.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonOnlyInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &HTTPError{StatusCode: apiErr.StatusCode, Err: err}
		}

		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder

	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("empty response from Anthropic API")
	}

	return sb.String(), nil
}
