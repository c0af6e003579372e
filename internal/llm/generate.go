package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/spectersec/specter/internal/provider"
	"github.com/spectersec/specter/internal/session"
)

// toolNameSep joins provider and operation names into one tool identifier
// presented to the model, e.g. "stringmcp__callStrings".
const toolNameSep = "__"

// Request is one call into the generative backend.
type Request struct {
	// Instructions is the role's system prompt.
	Instructions string
	// Prompt is the new user message for this call.
	Prompt string
	// History is the role's prior conversation.
	History session.History
	// Providers is the capability set bound to this call. Empty for
	// roles that work without tools (planner, verifier, reporter).
	Providers []provider.Provider
}

// Response carries the backend's output and the updated conversation,
// including any capability invocations made during the call.
type Response struct {
	Output  string
	History session.History
}

// Generator is the call-and-response interface to the generative backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// AnthropicGenerator implements Generator on the Anthropic Messages API,
// executing requested capability invocations against the bound providers
// until the model ends its turn.
type AnthropicGenerator struct {
	client        *Client
	maxTokens     int64
	maxIterations int
}

// GeneratorConfig configures an AnthropicGenerator.
type GeneratorConfig struct {
	Client *Client
	// MaxTokens per response. Defaults to 8192.
	MaxTokens int64
	// MaxIterations bounds the tool-use loop. Defaults to 25.
	MaxIterations int
}

// NewAnthropicGenerator creates a backend bound to the given client.
func NewAnthropicGenerator(cfg GeneratorConfig) *AnthropicGenerator {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 25
	}
	return &AnthropicGenerator{
		client:        cfg.Client,
		maxTokens:     maxTokens,
		maxIterations: maxIter,
	}
}

// Generate runs one agent turn. Tool invocations requested by the model are
// dispatched to the matching provider; their results are fed back until the
// model stops, the iteration bound is hit, or the context ends.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	entries := append(session.History(nil), req.History...)
	entries = append(entries, session.Entry{Kind: session.EntryUser, Content: req.Prompt})

	messages := historyToMessages(entries)
	tools := toolParams(req.Providers)

	for iter := 0; iter < g.maxIterations; iter++ {
		params := anthropic.MessageNewParams{
			Model:     g.client.Model(),
			MaxTokens: g.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: req.Instructions},
			},
			Messages: messages,
		}
		if len(tools) > 0 {
			params.Tools = tools
		}

		resp, err := g.client.sdk().Messages.New(ctx, params)
		if err != nil {
			return Response{}, fmt.Errorf("backend call: %w", err)
		}

		g.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				entries = append(entries, session.Entry{
					Kind:    session.EntryAssistant,
					Content: variant.Text,
				})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				entries = append(entries, session.Entry{
					Kind:       session.EntryToolCall,
					ToolName:   variant.Name,
					ToolCallID: variant.ID,
					ToolInput:  variant.Input,
				})
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				result := invokeProvider(ctx, req.Providers, variant.Name, variant.Input)
				entries = append(entries, session.Entry{
					Kind:       session.EntryToolResult,
					ToolName:   variant.Name,
					ToolCallID: variant.ID,
					Content:    result.Content,
					IsError:    result.IsError,
				})
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, result.Content, result.IsError))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn {
			return Response{Output: extractText(resp), History: entries}, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	return Response{}, fmt.Errorf("backend did not finish within %d iterations", g.maxIterations)
}

// invokeProvider routes a namespaced tool call to its provider. Failures
// come back as error results so they land in the worker's output rather
// than aborting the turn.
func invokeProvider(ctx context.Context, providers []provider.Provider, toolName string, input json.RawMessage) provider.Result {
	providerName, opName, ok := strings.Cut(toolName, toolNameSep)
	if !ok {
		return provider.Result{Content: fmt.Sprintf("unknown tool: %s", toolName), IsError: true}
	}

	for _, p := range providers {
		if p.Name() != providerName {
			continue
		}
		res, err := p.Invoke(ctx, opName, input)
		if err != nil {
			return provider.Result{Content: err.Error(), IsError: true}
		}
		return res
	}

	return provider.Result{Content: fmt.Sprintf("provider %s is not bound to this role", providerName), IsError: true}
}

// toolParams exposes every operation of every bound provider as a
// namespaced tool schema.
func toolParams(providers []provider.Provider) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, p := range providers {
		for _, op := range p.Operations() {
			properties := make(map[string]interface{}, len(op.Input))
			for field, schema := range op.Input {
				properties[field] = map[string]interface{}{
					"type":        schema.Type,
					"description": schema.Description,
				}
			}

			tools = append(tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        p.Name() + toolNameSep + op.Name,
					Description: anthropic.String(op.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: properties,
						Required:   op.Required,
					},
				},
			})
		}
	}
	return tools
}

// historyToMessages converts a stored conversation into API message params.
// Consecutive same-role messages are legal; the API folds them into turns.
func historyToMessages(h session.History) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, e := range h {
		switch e.Kind {
		case session.EntryUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(e.Content)))
		case session.EntryAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(e.Content)))
		case session.EntryToolCall:
			messages = append(messages, anthropic.NewAssistantMessage(
				anthropic.NewToolUseBlock(e.ToolCallID, e.ToolInput, e.ToolName)))
		case session.EntryToolResult:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(e.ToolCallID, e.Content, e.IsError)))
		}
	}
	return messages
}
