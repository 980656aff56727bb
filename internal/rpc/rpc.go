// Package rpc implements the stdio JSON-RPC framing the engine is served
// over: one JSON object per line on stdin, one JSON object per line on
// stdout. See SPEC_FULL.md §6 for why this is hand-rolled rather than
// built on a full MCP SDK.
package rpc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/chirino/agent-memory/internal/engine"
	"github.com/chirino/agent-memory/internal/model"
)

// ProtocolVersion is the version advertised when the client's requested
// version isn't one we recognize.
const ProtocolVersion = "2025-06-18"

// ServerName is the name reported in an initialize response.
const ServerName = "agent-memory"

// ServerVersion is the version reported in an initialize response.
const ServerVersion = "0.1.0"

var supportedProtocolVersions = map[string]bool{
	"2025-06-18": true,
	"2024-11-05": true,
}

// Dispatcher reads JSON-RPC requests from an input stream and writes
// responses to an output stream, dispatching tool calls to an Engine.
type Dispatcher struct {
	engine *engine.Engine
}

// New returns a Dispatcher backed by eng.
func New(eng *engine.Engine) *Dispatcher {
	return &Dispatcher{engine: eng}
}

type request struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func resultResponse(id int64, result interface{}) *response {
	return &response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id int64, code int, message string) *response {
	return &response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

// Run reads newline-delimited JSON-RPC messages from r until EOF (or a
// read error) and writes newline-delimited responses to w. Malformed
// lines and notifications produce no response and do not stop the loop.
func (d *Dispatcher) Run(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp, err := d.handleLine(line)
		if err != nil {
			log.Error("failed to handle request line", "err", err)
			continue
		}
		if resp == nil {
			continue
		}

		encoded, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if _, err := w.Write(encoded); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (d *Dispatcher) handleLine(line string) (*response, error) {
	var req request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return nil, fmt.Errorf("invalid json-rpc message: %w", err)
	}
	return d.handleMessage(req), nil
}

func (d *Dispatcher) handleMessage(req request) *response {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(req.ID, req.Params)
	case "initialized":
		return nil
	case "tools/list":
		return d.handleToolsList(req.ID)
	case "tools/call":
		return d.handleToolsCall(req.ID, req.Params)
	default:
		if req.ID == nil {
			return nil
		}
		return errorResponse(*req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func (d *Dispatcher) handleInitialize(id *int64, params json.RawMessage) *response {
	if id == nil {
		return nil
	}

	var body initializeParams
	_ = json.Unmarshal(params, &body)

	version := ProtocolVersion
	if supportedProtocolVersions[body.ProtocolVersion] {
		version = body.ProtocolVersion
	}

	return resultResponse(*id, map[string]interface{}{
		"protocolVersion": version,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
	})
}

type toolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

func (d *Dispatcher) handleToolsList(id *int64) *response {
	if id == nil {
		return nil
	}
	return resultResponse(*id, map[string]interface{}{"tools": toolDescriptors()})
}

func toolDescriptors() []toolDescriptor {
	return []toolDescriptor{
		{
			Name:        "now",
			Description: "Report the current instant in UTC and in the local time zone, for grounding relative time expressions before calling remember or recall.",
			InputSchema: nowSchema(),
		},
		{
			Name:        "keywords_list",
			Description: "List every keyword recorded so far in one namespace, for discovering what recall filters are available.",
			InputSchema: keywordsListSchema(),
		},
		{
			Name:        "keywords_list_global",
			Description: "List every keyword recorded across all namespaces under the store root, aggregated by how many namespaces and memories use each one.",
			InputSchema: keywordsListGlobalSchema(),
		},
		{
			Name:        "remember",
			Description: "Append one memory to a namespace: a short searchable slice, a longer diary entry, at least one keyword, and optionally an occurred-at time, an importance, and a source.",
			InputSchema: rememberSchema(),
		},
		{
			Name:        "recall",
			Description: "Query a namespace's memories by keyword, time range, and free text, ranked by hit count, importance, and recency.",
			InputSchema: recallSchema(),
		},
	}
}

func nowSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]interface{}{},
	}
}

func keywordsListSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"namespace"},
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "Namespace to list keywords for, as {userId}/{projectId}.",
			},
		},
	}
}

func keywordsListGlobalSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]interface{}{},
	}
}

func rememberSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"namespace", "keywords", "slice", "diary"},
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "Namespace to record into, as {userId}/{projectId}.",
			},
			"keywords": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Keywords to index this memory under. Time-like tokens are rejected; use occurred_at instead.",
			},
			"slice": map[string]interface{}{
				"type":        "string",
				"description": "Short searchable summary of the memory.",
			},
			"diary": map[string]interface{}{
				"type":        "string",
				"description": "Longer free-form memory text.",
			},
			"occurred_at": map[string]interface{}{
				"type":        "string",
				"description": "When the memory actually happened, RFC3339 or YYYY-MM-DD. When omitted, none is stored and recall uses recorded_at in its place.",
			},
			"importance": map[string]interface{}{
				"type":        "integer",
				"minimum":     1,
				"maximum":     5,
				"description": "Subjective importance, 1 (low) to 5 (high).",
			},
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Where this memory came from.",
			},
		},
	}
}

func recallSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"namespace"},
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "Namespace to query, as {userId}/{projectId}.",
			},
			"keywords": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Require at least one of these keywords to match.",
			},
			"start": map[string]interface{}{
				"type":        "string",
				"description": "Only include memories at or after this time, RFC3339 or YYYY-MM-DD.",
			},
			"end": map[string]interface{}{
				"type":        "string",
				"description": "Only include memories at or before this time, RFC3339 or YYYY-MM-DD.",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Free text to substring-match against slice/diary/source, plus an embedded time mini-language (time>=V, time<=V, time=A..B, time=V).",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"minimum":     1,
				"maximum":     100,
				"default":     20,
				"description": "Maximum number of results to return.",
			},
			"include_diary": map[string]interface{}{
				"type":        "boolean",
				"default":     false,
				"description": "Include the full diary text of each hit, not just the slice.",
			},
		},
	}
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (d *Dispatcher) handleToolsCall(id *int64, params json.RawMessage) *response {
	if id == nil {
		return nil
	}

	var body toolCallParams
	if err := json.Unmarshal(params, &body); err != nil {
		return errorResponse(*id, -32602, fmt.Sprintf("invalid params: %v", err))
	}
	if body.Arguments == nil {
		body.Arguments = map[string]interface{}{}
	}

	result, err := d.callTool(body.Name, body.Arguments)
	if err != nil {
		if _, ok := err.(*unknownToolError); ok {
			return errorResponse(*id, -32601, err.Error())
		}
		return errorResponse(*id, -32000, err.Error())
	}

	return resultResponse(*id, result)
}

type unknownToolError struct {
	Name string
}

func (e *unknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

func (d *Dispatcher) callTool(name string, args map[string]interface{}) (engine.ToolResult, error) {
	switch name {
	case "now":
		return d.engine.Now()
	case "keywords_list":
		ns, err := requiredString(args, "namespace")
		if err != nil {
			return engine.ToolResult{}, err
		}
		return d.engine.KeywordsList(ns)
	case "keywords_list_global":
		return d.engine.KeywordsListGlobal()
	case "remember":
		rememberArgs, err := model.DecodeRememberArgs(args)
		if err != nil {
			return engine.ToolResult{}, err
		}
		return d.engine.Remember(rememberArgs)
	case "recall":
		recallArgs, err := model.DecodeRecallArgs(args)
		if err != nil {
			return engine.ToolResult{}, err
		}
		return d.engine.Recall(recallArgs)
	default:
		return engine.ToolResult{}, &unknownToolError{Name: name}
	}
}

func requiredString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	return trimmed, nil
}
