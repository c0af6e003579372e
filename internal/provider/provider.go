// Package provider reaches external analysis tool providers through a
// uniform invocation protocol and partitions them into capability sets.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Result is a provider's response to one operation invocation. Provider
// failures surface here rather than as protocol errors; the core performs
// no retries on its behalf.
type Result struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Operation describes one named, schema-described operation a provider
// exposes.
type Operation struct {
	Name        string                `yaml:"name" json:"name"`
	Description string                `yaml:"description" json:"description"`
	Input       map[string]InputField `yaml:"input" json:"input"`
	Required    []string              `yaml:"required" json:"required"`
}

// InputField describes one argument of an operation.
type InputField struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
}

// Provider is an external tool process addressable by name. Internals are
// opaque to the core.
type Provider interface {
	Name() string
	Operations() []Operation
	// Invoke runs the named operation with JSON-encoded arguments. A
	// non-nil error means the provider could not be reached at all;
	// operation-level failures come back as Result.IsError.
	Invoke(ctx context.Context, op string, args json.RawMessage) (Result, error)
}

// StdioProvider invokes a provider as a subprocess speaking one JSON
// request and one JSON response per line over stdin/stdout.
type StdioProvider struct {
	name    string
	command string
	args    []string
	ops     []Operation
}

// NewStdioProvider creates a provider backed by the given command.
func NewStdioProvider(name, command string, args []string, ops []Operation) *StdioProvider {
	return &StdioProvider{name: name, command: command, args: args, ops: ops}
}

// Name returns the provider's configured name.
func (p *StdioProvider) Name() string { return p.name }

// Operations returns the operations declared for this provider.
func (p *StdioProvider) Operations() []Operation { return p.ops }

type stdioRequest struct {
	Operation string          `json:"operation"`
	Arguments json.RawMessage `json:"arguments"`
}

// Invoke spawns the provider process, writes the request line, and reads a
// single response line. The context bounds the whole invocation.
func (p *StdioProvider) Invoke(ctx context.Context, op string, args json.RawMessage) (Result, error) {
	req, err := json.Marshal(stdioRequest{Operation: op, Arguments: args})
	if err != nil {
		return Result{}, fmt.Errorf("encode request for %s: %w", p.name, err)
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(append(req, '\n'))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("pipe stdout for %s: %w", p.name, err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start provider %s: %w", p.name, err)
	}

	var res Result
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &res); err != nil {
			res = Result{Content: scanner.Text()}
		}
	}

	if err := cmd.Wait(); err != nil {
		if res.Content == "" {
			return Result{}, fmt.Errorf("provider %s: %w", p.name, err)
		}
		res.IsError = true
	}

	return res, nil
}
