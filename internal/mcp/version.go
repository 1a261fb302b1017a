package mcp

import (
	"context"
	"encoding/json"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	versionToolName  = "toolsmith_version"
	statusToolName   = "toolsmith_status"
	describeToolName = "toolsmith_describe"
)

// versionInfo holds build fields plus the active registry revision.
type versionInfo struct {
	Version  string `json:"version"`
	Build    string `json:"build"`
	Commit   string `json:"commit"`
	Revision int64  `json:"revision"`
}

// VersionTool returns the mcp.Tool definition for toolsmith_version.
func VersionTool() mcp.Tool {
	return mcp.NewTool(versionToolName,
		mcp.WithDescription("Get the toolsmith version and the active operation revision. Use this to verify connectivity."),
	)
}

// VersionToolHandler reports build info and the registry revision.
func VersionToolHandler(svc interfaces.ToolService) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := json.Marshal(versionInfo{
			Version:  common.GetVersion(),
			Build:    common.GetBuild(),
			Commit:   common.GetGitCommit(),
			Revision: svc.Status().Revision,
		})
		if err != nil {
			return errorResult("failed to marshal version info"), nil
		}
		return jsonResult(out), nil
	}
}

// StatusTool returns the mcp.Tool definition for toolsmith_status.
func StatusTool() mcp.Tool {
	return mcp.NewTool(statusToolName,
		mcp.WithDescription("Report the active operation set, discovery failures and the last refresh attempt."),
	)
}

// StatusToolHandler returns the registry status.
func StatusToolHandler(svc interfaces.ToolService) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := json.Marshal(svc.Status())
		if err != nil {
			return errorResult("failed to marshal status"), nil
		}
		return jsonResult(out), nil
	}
}

// DescribeTool returns the mcp.Tool definition for toolsmith_describe.
func DescribeTool() mcp.Tool {
	return mcp.NewTool(describeToolName,
		mcp.WithDescription("Describe one operation: its parameters, input schema and, for resource operations, the field metadata and permissions of the resource."),
		mcp.WithString("operation", mcp.Required(), mcp.Description("operation name, e.g. list_customer")),
	)
}

// DescribeToolHandler returns the operation schema for the named operation.
func DescribeToolHandler(svc interfaces.ToolService) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := r.GetString("operation", "")
		if name == "" {
			return errorResult("Error: operation parameter is required"), nil
		}
		desc, err := svc.DescribeOperation(name)
		if err != nil {
			return errorResult("Error: " + err.Error()), nil
		}
		out, err := json.Marshal(desc)
		if err != nil {
			return errorResult("failed to marshal operation schema"), nil
		}
		return jsonResult(out), nil
	}
}
