package mcp

import (
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/mark3labs/mcp-go/server"
)

// BuildServerTools returns the built-in tools plus one tool per valid operation.
func BuildServerTools(svc interfaces.ToolService, ops []models.OperationDescriptor, logger *common.Logger) []server.ServerTool {
	tools := []server.ServerTool{
		{Tool: VersionTool(), Handler: VersionToolHandler(svc)},
		{Tool: StatusTool(), Handler: StatusToolHandler(svc)},
		{Tool: DescribeTool(), Handler: DescribeToolHandler(svc)},
	}
	for _, op := range ValidateOperations(ops, logger) {
		tool, err := BuildTool(op)
		if err != nil {
			logger.Warn().Str("name", op.Name).Str("error", err.Error()).Msg("skipping operation tool")
			continue
		}
		tools = append(tools, server.ServerTool{Tool: tool, Handler: OperationToolHandler(svc, op.Name)})
	}
	return tools
}

// RegisterOperations replaces every tool on s with the current operation set.
// It returns the number of operation tools registered.
func RegisterOperations(s *server.MCPServer, svc interfaces.ToolService, ops []models.OperationDescriptor, logger *common.Logger) int {
	tools := BuildServerTools(svc, ops, logger)
	s.SetTools(tools...)
	return len(tools) - len(reservedTools)
}
