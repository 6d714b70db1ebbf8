// Package stdio is the line-delimited JSON-RPC transport for agent hosts
// that spawn the gateway as a subprocess.
//
// DESIGN: One JSON object per line in each direction. Tool-level failures
// (unknown name, disabled tool, invalid arguments) are reported inside a
// successful JSON-RPC response as text content, the way agent hosts expect
// tool output; only protocol-level problems become JSON-RPC errors: parse
// failure -32700, unknown method -32601. Requests without an id are treated
// as notifications and never answered.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/quantfab/market-gateway/internal/schema"
	"github.com/quantfab/market-gateway/internal/tools"
)

const (
	protocolVersion = "2025-06-18"

	codeParseError     = -32700
	codeMethodNotFound = -32601
)

// maxLineBytes caps one inbound request line.
const maxLineBytes = 4 * 1024 * 1024

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// content is one text block of a call_tool result.
type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Transport serves the gateway over stdin/stdout.
type Transport struct {
	registry  *tools.Registry
	runner    *tools.Runner
	validator *schema.Validator
	service   string
	version   string
}

// New wires the stdio transport.
func New(reg *tools.Registry, runner *tools.Runner, v *schema.Validator, service, version string) *Transport {
	return &Transport{registry: reg, runner: runner, validator: v, service: service, version: version}
}

// Serve reads requests line by line until r is exhausted or ctx is done.
func (t *Transport) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			reply(enc, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
			continue
		}
		if req.ID == nil {
			// Notification; nothing to answer.
			continue
		}
		reply(enc, t.dispatch(ctx, &req))
	}
	return scanner.Err()
}

func reply(enc *json.Encoder, resp response) {
	if err := enc.Encode(resp); err != nil {
		log.Warn().Err(err).Msg("stdio write failed")
	}
}

func (t *Transport) dispatch(ctx context.Context, req *request) response {
	resp := response{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocol_version": protocolVersion,
			"server_info": map[string]string{
				"name":    t.service,
				"version": t.version,
			},
		}

	case "list_tools":
		resp.Result = map[string]any{"tools": t.toolCards()}

	case "call_tool":
		resp.Result = t.callTool(ctx, req.Params)

	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
	return resp
}

// toolCards renders the enabled tools in list_tools form.
func (t *Transport) toolCards() []map[string]any {
	enabled := t.registry.Tools()
	out := make([]map[string]any, 0, len(enabled))
	for _, tool := range enabled {
		out = append(out, map[string]any{
			"name":         tool.Name,
			"description":  tool.Description,
			"input_schema": tool.InputSchema,
		})
	}
	return out
}

// callTool executes one tool call. Every outcome is text content; the
// envelope JSON on success, an explanatory line otherwise.
func (t *Transport) callTool(ctx context.Context, raw json.RawMessage) []content {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return textContent(fmt.Sprintf("Error: invalid call_tool params: %v", err))
	}

	tool, ok := t.registry.Get(params.Name)
	if !ok {
		if t.registry.Disabled(params.Name) {
			return textContent(fmt.Sprintf("Error: tool %q is disabled by configuration", params.Name))
		}
		return textContent(fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	if err := t.validator.Validate(params.Name, params.Arguments); err != nil {
		return textContent(fmt.Sprintf("Error: %v", err))
	}

	env := t.runner.Run(ctx, tool, params.Arguments)
	out, err := json.Marshal(env)
	if err != nil {
		return textContent(fmt.Sprintf("Error: encode envelope: %v", err))
	}
	return textContent(string(out))
}

func textContent(s string) []content {
	return []content{{Type: "text", Text: s}}
}
