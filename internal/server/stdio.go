// Package server exposes the gateway over line-delimited JSON-RPC 2.0 on
// stdio. One JSON object per line in each direction; requests may be
// answered out of order.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"netgate/internal/gateway"
	"netgate/internal/logging"
)

const protocolVersion = "2024-11-05"

// Version is the server version reported in the initialize handshake.
var Version = "dev"

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 reserved error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Stdio serves the gateway over a reader/writer pair. Each request runs on
// its own goroutine so a slow tool call never blocks discovery or job
// polling; a write mutex keeps response lines intact.
type Stdio struct {
	gw *gateway.Gateway

	in  io.Reader
	out io.Writer

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewStdio builds a server over the given streams (os.Stdin/os.Stdout in
// production, buffers in tests).
func NewStdio(gw *gateway.Gateway, in io.Reader, out io.Writer) *Stdio {
	return &Stdio{gw: gw, in: in, out: out}
}

// Serve reads requests until EOF or context cancellation, then waits for
// in-flight handlers to finish. Background jobs are not drained here; the
// caller decides whether shutdown waits on them.
func (s *Stdio) Serve(ctx context.Context) error {
	log := logging.Get(logging.CategoryTransport)
	log.Info("stdio server ready (protocol %s)", protocolVersion)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
			continue
		}

		// Notifications carry no id and get no response.
		if len(req.ID) == 0 {
			log.Debug("notification: %s", req.Method)
			continue
		}

		s.wg.Add(1)
		go func(req request) {
			defer s.wg.Done()
			s.write(s.handle(ctx, req))
		}(req)
	}

	s.wg.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	log.Info("stdio server stopped")
	return nil
}

func (s *Stdio) write(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Get(logging.CategoryTransport).Error("marshal response: %v", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out.Write(append(data, '\n'))
}

func (s *Stdio) handle(ctx context.Context, req request) response {
	resp := response{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "netgate",
				"version": Version,
			},
		}

	case "ping":
		resp.Result = map[string]any{}

	case "tools/list":
		resp.Result = s.listTools()

	case "tools/call":
		result, rpcErr := s.callTool(ctx, req.Params)
		resp.Result = result
		resp.Error = rpcErr

	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	return resp
}

// listTools maps the discovery index onto the wire tool-list shape.
func (s *Stdio) listTools() map[string]any {
	index := s.gw.ToolIndex()
	tools := make([]map[string]any, 0, len(index.Tools))
	for _, t := range index.Tools {
		tool := map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.Schema.Input,
		}
		if t.Schema.Output != nil {
			tool["outputSchema"] = t.Schema.Output
		}
		tools = append(tools, tool)
	}
	return map[string]any{"tools": tools}
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// callTool dispatches through the gateway. Tool-level failures (permission
// denied, validation, handler errors) are results with isError=true, not
// protocol errors; only malformed params produce a JSON-RPC error.
func (s *Stdio) callTool(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var params callParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid tools/call params"}
	}
	if params.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "tools/call requires a tool name"}
	}

	result := s.gw.CallTool(ctx, params.Name, params.Arguments)

	text, err := json.Marshal(result)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidRequest, Message: fmt.Sprintf("encode result: %v", err)}
	}

	isError := false
	if success, ok := result["success"].(bool); ok && !success {
		// Unconfirmed previews are a normal protocol step, not a failure.
		if rc, _ := result["requires_confirmation"].(bool); !rc {
			isError = true
		}
	}

	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"isError": isError,
	}, nil
}
