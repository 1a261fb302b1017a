package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/bobmcallan/toolsmith/internal/typemap"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolNamePattern is the tool name grammar MCP clients accept.
var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// reservedTools are served by this package and never generated.
var reservedTools = map[string]bool{
	versionToolName:  true,
	describeToolName: true,
	statusToolName:   true,
}

// ValidateOperation checks that an operation can be exposed as a tool.
func ValidateOperation(op models.OperationDescriptor) error {
	if op.Name == "" {
		return fmt.Errorf("operation has empty name")
	}
	if !toolNamePattern.MatchString(op.Name) {
		return fmt.Errorf("operation %q is not a valid tool name", op.Name)
	}
	if reservedTools[op.Name] {
		return fmt.Errorf("operation %q collides with a built-in tool", op.Name)
	}
	return nil
}

// ValidateOperations filters operations, logging warnings for invalid or duplicate names.
func ValidateOperations(ops []models.OperationDescriptor, logger *common.Logger) []models.OperationDescriptor {
	seen := make(map[string]bool, len(ops))
	valid := make([]models.OperationDescriptor, 0, len(ops))
	for _, op := range ops {
		if err := ValidateOperation(op); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("skipping invalid operation tool")
			continue
		}
		if seen[op.Name] {
			logger.Warn().Str("name", op.Name).Msg("skipping duplicate operation tool")
			continue
		}
		seen[op.Name] = true
		valid = append(valid, op)
	}
	return valid
}

// BuildTool converts an operation into an mcp.Tool whose input schema is the
// operation's JSON Schema.
func BuildTool(op models.OperationDescriptor) (mcp.Tool, error) {
	raw, err := json.Marshal(typemap.ToJSONSchema(op))
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("marshal input schema for %s: %w", op.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(op.Name, op.Description, raw)
	readOnly := op.Kind == models.OpList || op.Kind == models.OpGet
	destructive := op.Kind == models.OpDelete
	tool.Annotations = mcp.ToolAnnotation{
		Title:           op.Name,
		ReadOnlyHint:    &readOnly,
		DestructiveHint: &destructive,
		IdempotentHint:  &op.Idempotent,
	}
	return tool, nil
}

// OperationToolHandler routes a tool call to svc.Execute and returns the
// result envelope as JSON text.
func OperationToolHandler(svc interfaces.ToolService, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := svc.Execute(ctx, name, r.GetArguments())
		return envelopeResult(env), nil
	}
}

func envelopeResult(env models.ResultEnvelope) *mcp.CallToolResult {
	out, err := json.Marshal(env)
	if err != nil {
		return errorResult(fmt.Sprintf("Error: marshal result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(out))},
		IsError: !env.OK,
	}
}
