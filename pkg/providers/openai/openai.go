// Package openai implements modeladapter.Completer on top of the official
// openai-go SDK. Any OpenAI-compatible endpoint works through BaseURL.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/modeladapter"
	"github.com/germanamz/postcraft/pkg/modeladapter/usage"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com/v1/"

// ErrEmptyChoices is returned when the API answers without any choice.
var ErrEmptyChoices = errors.New("openai: empty choices in response")

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter wraps an openai.Client. The embedded ModelAdapter carries model
// settings and the usage tracker; HTTP is handled by the SDK.
type Adapter struct {
	modeladapter.ModelAdapter

	client openai.Client
}

// New creates an Adapter. SDK retries are disabled so that
// modeladapter.RetryCompleter owns the backoff policy.
func New(baseURL, apiKey, model string, opts ...option.RequestOption) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiKey}
	a.Name = model
	a.MaxTokens = 4096

	base := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	a.client = openai.NewClient(append(base, opts...)...)

	return a
}

// Complete sends the conversation and returns the model's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(a.Name),
		Messages: toMessages(c.Messages()),
	}

	if a.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(a.MaxTokens))
	}
	if a.Temperature != 0 {
		params.Temperature = openai.Float(a.Temperature)
	}

	if len(tools) > 0 {
		decls, err := toTools(tools)
		if err != nil {
			return message.Message{}, err
		}
		params.Tools = decls
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", rateLimit(err))
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	})

	if len(resp.Choices) == 0 {
		return message.Message{}, ErrEmptyChoices
	}

	choice := resp.Choices[0].Message

	var parts []content.Part
	if choice.Content != "" {
		parts = append(parts, content.Text{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New("", role.Assistant, parts...), nil
}

// rateLimit turns an SDK 429 into a *modeladapter.RateLimitError so that
// RetryCompleter can back off on it.
func rateLimit(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		return err
	}

	rle := &modeladapter.RateLimitError{Body: apiErr.Message}
	if apiErr.Response != nil {
		rle.RetryAfter = modeladapter.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}

	return rle
}

func toTools(tools []toolbox.Tool) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, t := range tools {
		params := shared.FunctionParameters{"type": "object"}
		if len(t.InputSchema) > 0 {
			params = shared.FunctionParameters{}
			if err := json.Unmarshal(t.InputSchema, &params); err != nil {
				return nil, fmt.Errorf("openai: schema of %s: %w", t.Name, err)
			}
		}

		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}

	return out, nil
}

func toMessages(msgs []message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case role.System:
			out = append(out, openai.SystemMessage(m.TextContent()))
		case role.Assistant:
			out = append(out, assistantMessage(m))
		case role.Tool:
			for _, p := range m.Parts {
				if tr, ok := p.(content.ToolResult); ok {
					out = append(out, openai.ToolMessage(tr.Content, tr.ToolCallID))
				}
			}
		default:
			out = append(out, userMessage(m))
		}
	}

	return out
}

func assistantMessage(m message.Message) openai.ChatCompletionMessageParamUnion {
	am := openai.ChatCompletionAssistantMessageParam{}

	if text := m.TextContent(); text != "" {
		am.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}

	for _, tc := range m.ToolCalls() {
		args := tc.Arguments
		if args == "" {
			args = "{}"
		}
		am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &am}
}

func userMessage(m message.Message) openai.ChatCompletionMessageParamUnion {
	imgs := m.Images()
	if len(imgs) == 0 {
		return openai.UserMessage(m.TextContent())
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		{OfText: &openai.ChatCompletionContentPartTextParam{Text: m.TextContent()}},
	}
	for _, img := range imgs {
		url := img.URL
		if len(img.Data) > 0 {
			url = fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
		}
		if url == "" {
			continue
		}
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: url},
			},
		})
	}

	return openai.ChatCompletionMessageParamUnion{OfUser: &openai.ChatCompletionUserMessageParam{
		Content: openai.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: parts},
	}}
}
