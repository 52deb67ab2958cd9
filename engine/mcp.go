package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the swatch tools on an MCP server, so agent-side
// tooling can drive and inspect widgets the same way the HTTP surface does.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerSwitchTool(srv)
	e.registerResetTool(srv)
	e.registerStatusTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool wires decode → endpoint → JSON result, with tool-level errors
// reported through the MCP result rather than the transport.
func registerTool(srv *mcp.Server, tool *mcp.Tool,
	endpoint func(ctx context.Context, req any) (any, error),
	decode func(*mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- swatch_switch ---

type switchRequest struct {
	BlockID string `json:"block_id"`
	Index   int    `json:"index"`
}

func (e *Engine) registerSwitchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "swatch_switch",
		Description: "Switch a swatch widget to the color at the given index and rebuild its carousel.",
		InputSchema: inputSchema(map[string]any{
			"block_id": map[string]any{"type": "string", "description": "Widget block identifier"},
			"index":    map[string]any{"type": "integer", "description": "Target swatch index"},
		}, []string{"block_id", "index"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*switchRequest)
		if err := e.Switch(ctx, r.BlockID, r.Index); err != nil {
			return nil, err
		}
		return map[string]any{"status": "committed", "block_id": r.BlockID, "index": r.Index}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r switchRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, endpoint, decode)
}

// --- swatch_reset ---

type resetRequest struct {
	BlockID string `json:"block_id"`
}

func (e *Engine) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "swatch_reset",
		Description: "Restore a widget's carousel to its originally captured markup and reset the selection.",
		InputSchema: inputSchema(map[string]any{
			"block_id": map[string]any{"type": "string", "description": "Widget block identifier"},
		}, []string{"block_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*resetRequest)
		if err := e.ResetAllImages(r.BlockID); err != nil {
			return nil, err
		}
		return map[string]any{"status": "reset", "block_id": r.BlockID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r resetRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, endpoint, decode)
}

// --- swatch_status ---

func (e *Engine) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "swatch_status",
		Description: "List the state of every initialized swatch widget on the page.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return e.States(), nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		return struct{}{}, nil
	}

	registerTool(srv, tool, endpoint, decode)
}
