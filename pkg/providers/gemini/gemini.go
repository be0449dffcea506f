// Package gemini implements modeladapter.Completer for the Google Gemini
// generateContent API. It also exposes GenerateImage for image-capable models.
package gemini

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
	"github.com/google/uuid"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// ErrEmptyCandidates is returned when Gemini answers without any candidate,
// usually because the prompt was blocked.
var ErrEmptyCandidates = errors.New("gemini: empty candidates in response")

// ErrNoImage is returned by GenerateImage when the reply carries no image part.
var ErrNoImage = errors.New("gemini: response contained no image")

const signatureKey = "thoughtSignature"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter talks to the Gemini REST API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter. An empty baseURL selects DefaultBaseURL.
func New(baseURL, apiKey, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiKey, Header: "x-goog-api-key"}
	a.Name = model
	a.MaxTokens = 8192

	return a
}

// Complete sends the conversation and returns the model's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	req := a.request(c, tools)

	cand, err := a.generate(ctx, req)
	if err != nil {
		return message.Message{}, err
	}

	return message.New("", role.Assistant, fromParts(cand.Content.Parts)...), nil
}

// GenerateImage asks an image-capable model to draw prompt and returns every
// image part of the reply.
func (a *Adapter) GenerateImage(ctx context.Context, prompt string) ([]content.Image, error) {
	req := generateRequest{
		Contents: []turn{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens:    a.MaxTokens,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	cand, err := a.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := message.New("", role.Assistant, fromParts(cand.Content.Parts)...)
	imgs := msg.Images()
	if len(imgs) == 0 {
		return nil, ErrNoImage
	}

	return imgs, nil
}

func (a *Adapter) generate(ctx context.Context, req generateRequest) (candidate, error) {
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", a.Name)

	var resp generateResponse
	if err := a.PostJSON(ctx, path, req, &resp); err != nil {
		return candidate{}, fmt.Errorf("gemini: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	})

	if len(resp.Candidates) == 0 {
		return candidate{}, ErrEmptyCandidates
	}

	return resp.Candidates[0], nil
}

type generateRequest struct {
	Contents          []turn           `json:"contents"`
	SystemInstruction *turn            `json:"systemInstruction,omitempty"`
	Tools             []toolSet        `json:"tools,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type turn struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *blob             `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type functionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type generationConfig struct {
	Temperature        *float64 `json:"temperature,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content      turn   `json:"content"`
	FinishReason string `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

func (a *Adapter) request(c *chat.Chat, tools []toolbox.Tool) generateRequest {
	req := generateRequest{
		GenerationConfig: generationConfig{MaxOutputTokens: a.MaxTokens},
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.GenerationConfig.Temperature = &t
	}

	if len(tools) > 0 {
		decls := make([]functionDeclaration, 0, len(tools))
		for _, t := range tools {
			params := t.InputSchema
			if len(params) == 0 {
				params = json.RawMessage(`{"type":"object"}`)
			}
			decls = append(decls, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  sanitizeSchema(params),
			})
		}
		req.Tools = []toolSet{{FunctionDeclarations: decls}}
	}

	if sp := c.SystemPrompt(); sp != "" {
		req.SystemInstruction = &turn{Parts: []part{{Text: sp}}}
	}

	msgs := c.Messages()
	names := callNames(msgs)

	for _, m := range msgs {
		if m.Role == role.System {
			continue
		}

		r := "user"
		if m.Role == role.Assistant {
			r = "model"
		}

		for _, p := range m.Parts {
			ap, ok := toPart(p, names)
			if !ok {
				continue
			}

			// Consecutive parts with the same role share one turn.
			if n := len(req.Contents); n > 0 && req.Contents[n-1].Role == r {
				req.Contents[n-1].Parts = append(req.Contents[n-1].Parts, ap)
				continue
			}
			req.Contents = append(req.Contents, turn{Role: r, Parts: []part{ap}})
		}
	}

	return req
}

// callNames maps tool call IDs to function names. Gemini's functionResponse
// needs the name but a ToolResult only carries the ID.
func callNames(msgs []message.Message) map[string]string {
	names := make(map[string]string)
	for _, m := range msgs {
		for _, tc := range m.ToolCalls() {
			names[tc.ID] = tc.Name
		}
	}
	return names
}

func toPart(p content.Part, names map[string]string) (part, bool) {
	switch v := p.(type) {
	case content.Text:
		if v.Text == "" {
			return part{}, false
		}
		return part{Text: v.Text}, true
	case content.Image:
		if len(v.Data) == 0 {
			return part{}, false
		}
		return part{InlineData: &blob{
			MimeType: v.MediaType,
			Data:     base64.StdEncoding.EncodeToString(v.Data),
		}}, true
	case content.ToolCall:
		args := json.RawMessage(v.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		return part{
			FunctionCall:     &functionCall{Name: v.Name, Args: args},
			ThoughtSignature: v.Metadata[signatureKey],
		}, true
	case content.ToolResult:
		name, ok := names[v.ToolCallID]
		if !ok {
			// The call fell out of history; Gemini rejects orphaned responses.
			return part{}, false
		}
		return part{FunctionResponse: &functionResponse{
			Name:     name,
			Response: wrapResult(v.Content),
		}}, true
	default:
		return part{}, false
	}
}

// wrapResult wraps tool output as {"result": ...}. Valid JSON is embedded
// as-is, anything else as a JSON string.
func wrapResult(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(`{"result":` + s + `}`)
	}
	b, _ := json.Marshal(s)
	return json.RawMessage(`{"result":` + string(b) + `}`)
}

// sanitizeSchema drops keywords Gemini rejects ($schema, $id,
// additionalProperties) at every nesting level.
func sanitizeSchema(raw json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}

	delete(obj, "$schema")
	delete(obj, "$id")
	delete(obj, "additionalProperties")

	if props, ok := obj["properties"]; ok {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(props, &m); err == nil {
			for k, v := range m {
				m[k] = sanitizeSchema(v)
			}
			if b, err := json.Marshal(m); err == nil {
				obj["properties"] = b
			}
		}
	}

	if items, ok := obj["items"]; ok {
		obj["items"] = sanitizeSchema(items)
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return b
}

func fromParts(parts []part) []content.Part {
	var out []content.Part

	for _, p := range parts {
		switch {
		case p.FunctionCall != nil:
			// Gemini does not return call IDs, so one is synthesized.
			tc := content.ToolCall{
				ID:        "call_" + uuid.NewString(),
				Name:      p.FunctionCall.Name,
				Arguments: string(p.FunctionCall.Args),
			}
			if p.ThoughtSignature != "" {
				tc.Metadata = map[string]string{signatureKey: p.ThoughtSignature}
			}
			out = append(out, tc)
		case p.InlineData != nil:
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			out = append(out, content.Image{Data: data, MediaType: p.InlineData.MimeType})
		case p.Text != "":
			out = append(out, content.Text{Text: p.Text})
		}
	}

	return out
}
