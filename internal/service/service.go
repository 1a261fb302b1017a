// Package service composes the registry and the executor into the surface
// consumed by the HTTP API, the MCP server and the CLI.
package service

import (
	"context"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/executor"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/metrics"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/bobmcallan/toolsmith/internal/registry"
	"github.com/bobmcallan/toolsmith/internal/typemap"
)

var _ interfaces.ToolService = (*Service)(nil)

// Service implements interfaces.ToolService.
type Service struct {
	registry *registry.Registry
	executor *executor.Executor
	metrics  *metrics.Metrics
	logger   *common.Logger
}

// New creates a Service. m may be nil.
func New(reg *registry.Registry, exec *executor.Executor, m *metrics.Metrics, logger *common.Logger) *Service {
	s := &Service{registry: reg, executor: exec, metrics: m, logger: logger}
	reg.Subscribe(func(snap *registry.Snapshot, diff models.RegistryDiff) {
		if exec.Cache() != nil && (len(diff.Removed) > 0 || len(diff.Changed) > 0) {
			exec.Cache().Purge()
		}
		if m != nil {
			m.SetSnapshot(snap.Revision, snap.Operations(), len(snap.Failures()))
		}
	})
	return s
}

// ListOperations returns the active operations filtered by kind and target.
func (s *Service) ListOperations(kind models.OperationKind, target string) []models.OperationDescriptor {
	return s.registry.List(kind, target)
}

// DescribeOperation returns the descriptor, its JSON Schema, and for resource
// operations the field metadata and permissions it was generated from.
func (s *Service) DescribeOperation(name string) (*models.OperationSchema, error) {
	op, err := s.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	out := &models.OperationSchema{Operation: op, InputSchema: typemap.ToJSONSchema(op)}
	if op.Kind != models.OpProcedure {
		if res, ok := s.registry.Resource(op.TargetType); ok {
			out.Fields = res.Fields
			out.Permissions = res.Permissions
		}
	}
	return out, nil
}

// Execute runs one operation. It never returns an error; failures are
// carried in the envelope.
func (s *Service) Execute(ctx context.Context, name string, args map[string]interface{}) models.ResultEnvelope {
	return s.executor.Execute(ctx, name, args)
}

// Refresh rediscovers capabilities and swaps the registry when they changed.
func (s *Service) Refresh(ctx context.Context) (models.RegistryDiff, error) {
	start := time.Now()
	diff, err := s.registry.Refresh(ctx)
	if s.metrics != nil {
		s.metrics.ObserveRefresh(time.Since(start), err)
	}
	return diff, err
}

// Status reports the active snapshot and the last refresh attempt.
func (s *Service) Status() models.RegistryStatus {
	return s.registry.Status()
}

// Subscribe registers fn to run after every change of the operation set.
func (s *Service) Subscribe(fn func(revision int64, diff models.RegistryDiff)) {
	s.registry.Subscribe(func(snap *registry.Snapshot, diff models.RegistryDiff) {
		fn(snap.Revision, diff)
	})
}
