package interfaces

import (
	"context"

	"github.com/bobmcallan/toolsmith/internal/models"
)

// ToolService is the consumer-facing surface shared by the HTTP API, the MCP
// server and the CLI.
type ToolService interface {
	ListOperations(kind models.OperationKind, target string) []models.OperationDescriptor
	DescribeOperation(name string) (*models.OperationSchema, error)
	Execute(ctx context.Context, name string, args map[string]interface{}) models.ResultEnvelope
	Refresh(ctx context.Context) (models.RegistryDiff, error)
	Status() models.RegistryStatus
	// Subscribe registers fn to run after every change of the operation set.
	Subscribe(fn func(revision int64, diff models.RegistryDiff))
}
