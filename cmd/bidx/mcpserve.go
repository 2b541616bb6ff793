package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/bidx/internal/layout"
	"github.com/agentic-research/bidx/internal/query"
	"github.com/agentic-research/bidx/internal/schema"
)

// mcpServeCmd exposes a loaded Layout over MCP stdio, giving the pack's
// otherwise-unimported mark3labs/mcp-go dependency a real home: agents
// that already speak MCP can query a dataset without shelling out to the
// CLI (spec.md §6).
var mcpServeFlags sharedFlags

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve ROOT [ROOT...]",
	Short: "Serve query_files / list_entity_values / get_metadata as MCP tools over stdio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpServeFlags.roots = args
		mcpServeFlags.indexMetadata = true
		l, err := loadLayout(&mcpServeFlags)
		if err != nil {
			return classify(err)
		}
		return serveMCP(l)
	},
}

func init() {
	f := mcpServeCmd.Flags()
	f.StringSliceVar(&mcpServeFlags.derivatives, "derivatives", nil, `"auto" to discover derivatives/*, or explicit paths`)
	f.StringVar(&mcpServeFlags.cacheDir, "cache-dir", "", "reuse the index at this directory if present")
	f.BoolVar(&mcpServeFlags.resetCache, "reset-cache", false, "discard any existing cache before indexing")
}

func serveMCP(l *layout.Layout) error {
	s := server.NewMCPServer("bidx", "0.1.0")

	s.AddTool(
		mcp.NewTool("query_files",
			mcp.WithDescription("List files matching a scope and entity filters"),
			mcp.WithArray("scope", mcp.Description("all|raw|derivatives|self|<pipeline name>")),
			mcp.WithObject("filters", mcp.Description("entity name -> value, list-of-values, true (present), or false (absent)")),
		),
		queryFilesHandler(l),
	)

	s.AddTool(
		mcp.NewTool("list_entity_values",
			mcp.WithDescription("List every entity name and its observed values in the current index"),
		),
		listEntityValuesHandler(l),
	)

	s.AddTool(
		mcp.NewTool("get_metadata",
			mcp.WithDescription("Resolve inheritance-merged sidecar metadata for one file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("the file's indexed path")),
		),
		getMetadataHandler(l),
	)

	return server.ServeStdio(s)
}

func queryFilesHandler(l *layout.Layout) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var scopes []query.Scope
		for _, s := range req.GetStringSlice("scope", nil) {
			scopes = append(scopes, query.ParseScope(s))
		}

		raw := req.GetArguments()["filters"]
		filters := make(map[schema.EntityName]query.FilterValue)
		if m, ok := raw.(map[string]any); ok {
			for k, v := range m {
				filters[schema.EntityName(k)] = mcpFilterValue(v)
			}
		}

		files, err := l.Get(scopes, filters)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		out, _ := json.Marshal(paths)
		return mcp.NewToolResultText(string(out)), nil
	}
}

func listEntityValuesHandler(l *layout.Layout) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, _ := json.Marshal(l.Entities())
		return mcp.NewToolResultText(string(out)), nil
	}
}

func getMetadataHandler(l *layout.Layout) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, vf := range l.Materialize() {
			if vf.Path == path {
				out, _ := json.Marshal(vf.Metadata())
				return mcp.NewToolResultText(string(out)), nil
			}
		}
		return mcp.NewToolResultError(fmt.Sprintf("no file matching %q", path)), nil
	}
}

// mcpFilterValue maps one JSON filter value to a query.FilterValue: true
// means present (ANY), false means absent (NONE), a string means Equal, a
// list means OneOf, matching spec.md §4.5's filter-value variants.
func mcpFilterValue(v any) query.FilterValue {
	switch val := v.(type) {
	case bool:
		if val {
			return query.Any()
		}
		return query.None()
	case string:
		return query.Eq(val)
	case []any:
		vals := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				vals = append(vals, s)
			}
		}
		return query.In(vals)
	default:
		return query.Unfiltered()
	}
}
