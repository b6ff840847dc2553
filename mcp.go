package domresolve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domresolve/kit"
	"github.com/hazyhaar/domresolve/selector"
)

// RegisterMCP registers resolver tools on an MCP server.
func (r *Resolver) RegisterMCP(srv *mcp.Server) {
	r.registerResolveTool(srv)
	r.registerResolveAllTool(srv)
	r.registerEnterScopeTool(srv)
	r.registerListSelectorsTool(srv)
	r.registerDriftReportTool(srv)
	r.registerAdaptNowTool(srv)
	r.registerStatsTool(srv)
	r.registerFailuresTool(srv)
}

// --- resolve ---

type resolveReq struct {
	Intent string `json:"intent"`
}

// resolveView strips the live element handle down to its extracted content.
type resolveView struct {
	Result *selector.ResolutionResult `json:"result"`
	Text   string                     `json:"text,omitempty"`
}

func (r *Resolver) registerResolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_resolve",
		Description: "Resolve a semantic intent to a DOM element under the active scope. Returns the decision, confidence, attempt log, and the element text when found.",
		InputSchema: kit.InputSchema(map[string]any{
			"intent": map[string]any{"type": "string", "description": "Semantic selector intent, e.g. home_team_name"},
		}, []string{"intent"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		q := req.(*resolveReq)
		res, err := r.Resolve(ctx, q.Intent)
		if err != nil {
			return nil, err
		}
		view := resolveView{Result: res}
		if res.Element != nil {
			if text, err := res.Element.Text(ctx); err == nil {
				view.Text = text
			}
		}
		return view, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var q resolveReq
		if err := json.Unmarshal(req.Params.Arguments, &q); err != nil {
			return nil, err
		}
		if q.Intent == "" {
			return nil, fmt.Errorf("intent is required")
		}
		return &kit.MCPDecodeResult{Request: &q}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- resolve_all ---

func (r *Resolver) registerResolveAllTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_resolve_all",
		Description: "Resolve every intent bound to the active scope concurrently. Returns a map of intent to result with element text.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		results := r.ResolveAll(ctx)
		out := make(map[string]resolveView, len(results))
		for intent, res := range results {
			view := resolveView{Result: res}
			if res.Element != nil {
				if text, err := res.Element.Text(ctx); err == nil {
					view.Text = text
				}
			}
			out[intent] = view
		}
		return out, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- enter_scope ---

type enterScopeReq struct {
	Scope string `json:"scope"`
}

func (r *Resolver) registerEnterScopeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_enter_scope",
		Description: "Activate a logical scope (tab, panel). Cancels in-flight resolutions bound to the previous scope generation.",
		InputSchema: kit.InputSchema(map[string]any{
			"scope": map[string]any{"type": "string", "description": "Scope ID, e.g. match_header"},
		}, []string{"scope"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		q := req.(*enterScopeReq)
		gen := r.EnterScope(q.Scope)
		return map[string]any{"scope": q.Scope, "generation": gen}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var q enterScopeReq
		if err := json.Unmarshal(req.Params.Arguments, &q); err != nil {
			return nil, err
		}
		if q.Scope == "" {
			return nil, fmt.Errorf("scope is required")
		}
		return &kit.MCPDecodeResult{Request: &q}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_selectors ---

func (r *Resolver) registerListSelectorsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_list_selectors",
		Description: "List all loaded selector definitions with their current strategy order and blacklist flags.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"selectors": r.Definitions()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- drift_report ---

func (r *Resolver) registerDriftReportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_drift_report",
		Description: "Report rolling success rates for every (intent, strategy) pair tracked by the drift detector.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"pairs": r.DriftReport()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- adapt_now ---

func (r *Resolver) registerAdaptNowTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_adapt_now",
		Description: "Run one adaptation pass immediately instead of waiting for the periodic interval.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		r.AdaptNow(ctx)
		return map[string]any{"status": "ok"}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- stats ---

func (r *Resolver) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_stats",
		Description: "Resolver statistics: definition count, tracked drift pairs, persisted failure count.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return r.Stats(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- failures ---

type failuresReq struct {
	Intent string `json:"intent"`
	Limit  int    `json:"limit"`
}

func (r *Resolver) registerFailuresTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domresolve_failures",
		Description: "List recent persisted failure contexts, optionally filtered by intent.",
		InputSchema: kit.InputSchema(map[string]any{
			"intent": map[string]any{"type": "string", "description": "Filter by intent (optional)"},
			"limit":  map[string]any{"type": "integer", "description": "Max rows, default 20"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		q := req.(*failuresReq)
		limit := q.Limit
		if limit <= 0 {
			limit = 20
		}
		fcs, err := r.Failures(ctx, q.Intent, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"failures": fcs}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var q failuresReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &q); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &q}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
