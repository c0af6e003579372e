package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spectersec/specter/internal/provider"
	"github.com/spectersec/specter/internal/session"
)

type fakeProvider struct {
	name    string
	ops     []provider.Operation
	lastOp  string
	lastArg json.RawMessage
	result  provider.Result
}

func (f *fakeProvider) Name() string                     { return f.name }
func (f *fakeProvider) Operations() []provider.Operation { return f.ops }
func (f *fakeProvider) Invoke(ctx context.Context, op string, args json.RawMessage) (provider.Result, error) {
	f.lastOp = op
	f.lastArg = args
	return f.result, nil
}

func TestToolParamsNamespacing(t *testing.T) {
	p := &fakeProvider{
		name: "stringmcp",
		ops: []provider.Operation{{
			Name:        "callStrings",
			Description: "Extract printable strings",
			Input: map[string]provider.InputField{
				"file_path": {Type: "string", Description: "Path to the file"},
			},
			Required: []string{"file_path"},
		}},
	}

	tools := toolParams([]provider.Provider{p})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if got := tools[0].OfTool.Name; got != "stringmcp__callStrings" {
		t.Errorf("unexpected tool name %q", got)
	}
	if len(tools[0].OfTool.InputSchema.Required) != 1 {
		t.Errorf("expected required field carried through")
	}
}

func TestInvokeProviderRouting(t *testing.T) {
	p := &fakeProvider{name: "hashdbmcp", result: provider.Result{Content: "CreateFileW"}}

	res := invokeProvider(context.Background(), []provider.Provider{p},
		"hashdbmcp__resolve_hash", json.RawMessage(`{"hash_value":"0x1234"}`))

	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if res.Content != "CreateFileW" {
		t.Errorf("unexpected content %q", res.Content)
	}
	if p.lastOp != "resolve_hash" {
		t.Errorf("expected operation resolve_hash, got %q", p.lastOp)
	}
}

func TestInvokeProviderUnknown(t *testing.T) {
	p := &fakeProvider{name: "stringmcp"}

	res := invokeProvider(context.Background(), []provider.Provider{p},
		"ghidramcp__decompile", nil)
	if !res.IsError {
		t.Error("expected error result for unbound provider")
	}

	res = invokeProvider(context.Background(), []provider.Provider{p}, "plainname", nil)
	if !res.IsError {
		t.Error("expected error result for non-namespaced tool name")
	}
}

func TestHistoryToMessages(t *testing.T) {
	h := session.History{
		{Kind: session.EntryUser, Content: "analyze this"},
		{Kind: session.EntryAssistant, Content: "running strings"},
		{Kind: session.EntryToolCall, ToolName: "stringmcp__callStrings", ToolCallID: "tc1", ToolInput: json.RawMessage(`{}`)},
		{Kind: session.EntryToolResult, ToolCallID: "tc1", Content: "hello world"},
	}

	messages := historyToMessages(h)
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
}

func TestExtractJSONObject(t *testing.T) {
	payload, err := ExtractJSONObject("Here is the plan:\n```json\n{\"tasks\": []}\n```\nDone.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != `{"tasks": []}` {
		t.Errorf("unexpected payload %q", payload)
	}
}

func TestExtractJSONObjectMissing(t *testing.T) {
	_, err := ExtractJSONObject("no structured data here")
	if err == nil || !strings.Contains(err.Error(), "no JSON object") {
		t.Fatalf("expected extraction error, got %v", err)
	}
}
