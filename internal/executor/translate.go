package executor

import (
	"context"
	"fmt"

	"github.com/bobmcallan/toolsmith/internal/client"
	"github.com/bobmcallan/toolsmith/internal/generator"
	"github.com/bobmcallan/toolsmith/internal/models"
)

// RemoteClient is the remote resource API the executor drives.
type RemoteClient interface {
	HasCredentials(ctx context.Context) bool
	List(ctx context.Context, resourceType string, q client.ListQuery) (*client.Response, error)
	Get(ctx context.Context, resourceType, id string, fields []string) (*client.Response, error)
	Create(ctx context.Context, resourceType string, payload map[string]interface{}) (*client.Response, error)
	Update(ctx context.Context, resourceType, id string, payload map[string]interface{}) (*client.Response, error)
	Delete(ctx context.Context, resourceType, id string) (*client.Response, error)
	CallProcedure(ctx context.Context, qualifiedName string, args map[string]interface{}) (*client.Response, error)
}

// call issues the remote call for op. args must already be validated.
func call(ctx context.Context, remote RemoteClient, op models.OperationDescriptor, args map[string]interface{}) (*client.Response, error) {
	switch op.Kind {
	case models.OpList:
		return remote.List(ctx, op.TargetType, listQuery(args))
	case models.OpGet:
		return remote.Get(ctx, op.TargetType, stringArg(args, generator.ParamName), stringsArg(args, generator.ParamFields))
	case models.OpCreate:
		return remote.Create(ctx, op.TargetType, copyArgs(args))
	case models.OpUpdate:
		payload := copyArgs(args)
		delete(payload, generator.ParamName)
		return remote.Update(ctx, op.TargetType, stringArg(args, generator.ParamName), payload)
	case models.OpDelete:
		return remote.Delete(ctx, op.TargetType, stringArg(args, generator.ParamName))
	case models.OpProcedure:
		return remote.CallProcedure(ctx, op.TargetType, copyArgs(args))
	}
	return nil, fmt.Errorf("operation kind %q has no remote call", op.Kind)
}

func listQuery(args map[string]interface{}) client.ListQuery {
	q := client.ListQuery{
		Fields:  stringsArg(args, generator.ParamFields),
		OrderBy: stringArg(args, generator.ParamOrderBy),
		Offset:  intArg(args, generator.ParamOffset),
		Limit:   intArg(args, generator.ParamLimit),
	}
	if f, ok := args[generator.ParamFilters].(map[string]interface{}); ok && len(f) > 0 {
		q.Filters = f
	}
	return q
}

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func intArg(args map[string]interface{}, name string) int {
	n, _ := toFloat(args[name])
	return int(n)
}

func stringsArg(args map[string]interface{}, name string) []string {
	items, ok := toSlice(args[name])
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// copyArgs drops nil values so an explicit null never reaches the remote.
func copyArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
