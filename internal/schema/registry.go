// Package schema holds the normalized, immutable model of every discovered
// resource type and procedure.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/google/uuid"
)

// Snapshot is one internally consistent generation of discovered descriptors.
// It is never mutated after Build returns.
type Snapshot struct {
	Version    string
	BuiltAt    time.Time
	Provider   string
	resources  []models.ResourceDescriptor
	procedures []models.ProcedureDescriptor
	byType     map[string]int
	byProc     map[string]int
}

// Build normalizes a discovery result into a Snapshot. Descriptors violating
// an invariant are excluded and reported as MalformedDefinition failures; the
// discovery result's own failures are carried through first.
func Build(result *models.DiscoveryResult) (*Snapshot, []models.DiscoveryFailure) {
	snap := &Snapshot{
		Version: uuid.New().String(),
		BuiltAt: time.Now().UTC(),
		byType:  make(map[string]int),
		byProc:  make(map[string]int),
	}
	if result == nil {
		return snap, nil
	}
	snap.Provider = result.Provider

	failures := append([]models.DiscoveryFailure(nil), result.Failures...)

	resources := make([]models.ResourceDescriptor, 0, len(result.Resources))
	seenTypes := make(map[string]bool, len(result.Resources))
	for _, r := range result.Resources {
		r = r.Clone()
		r.TypeName = strings.TrimSpace(r.TypeName)
		r.Permissions = models.NewPermissionSet(r.Permissions...)
		if err := ValidateResource(r); err != nil {
			failures = append(failures, failure(sourceOf(r.Source, r.TypeName), err))
			continue
		}
		if seenTypes[r.TypeName] {
			failures = append(failures, models.DiscoveryFailure{
				Source:  sourceOf(r.Source, r.TypeName),
				Kind:    models.ErrKindMalformedDefinition,
				Message: fmt.Sprintf("duplicate resource type %q", r.TypeName),
			})
			continue
		}
		seenTypes[r.TypeName] = true
		resources = append(resources, r)
	}

	procedures := make([]models.ProcedureDescriptor, 0, len(result.Procedures))
	seenProcs := make(map[string]bool, len(result.Procedures))
	for _, p := range result.Procedures {
		p = p.Clone()
		p.QualifiedName = strings.TrimSpace(p.QualifiedName)
		if err := ValidateProcedure(p); err != nil {
			failures = append(failures, failure(sourceOf(p.Source, p.QualifiedName), err))
			continue
		}
		if seenProcs[p.QualifiedName] {
			failures = append(failures, models.DiscoveryFailure{
				Source:  sourceOf(p.Source, p.QualifiedName),
				Kind:    models.ErrKindMalformedDefinition,
				Message: fmt.Sprintf("duplicate procedure %q", p.QualifiedName),
			})
			continue
		}
		seenProcs[p.QualifiedName] = true
		procedures = append(procedures, p)
	}

	models.SortResources(resources)
	models.SortProcedures(procedures)
	for i, r := range resources {
		snap.byType[r.TypeName] = i
	}
	for i, p := range procedures {
		snap.byProc[p.QualifiedName] = i
	}
	snap.resources = resources
	snap.procedures = procedures
	return snap, failures
}

// Resources returns copies of all resources in ascending type name order.
func (s *Snapshot) Resources() []models.ResourceDescriptor {
	out := make([]models.ResourceDescriptor, len(s.resources))
	for i, r := range s.resources {
		out[i] = r.Clone()
	}
	return out
}

// Procedures returns copies of all procedures in ascending qualified name order.
func (s *Snapshot) Procedures() []models.ProcedureDescriptor {
	out := make([]models.ProcedureDescriptor, len(s.procedures))
	for i, p := range s.procedures {
		out[i] = p.Clone()
	}
	return out
}

// Resource returns a copy of the named resource.
func (s *Snapshot) Resource(typeName string) (models.ResourceDescriptor, bool) {
	i, ok := s.byType[typeName]
	if !ok {
		return models.ResourceDescriptor{}, false
	}
	return s.resources[i].Clone(), true
}

// Procedure returns a copy of the named procedure.
func (s *Snapshot) Procedure(qualifiedName string) (models.ProcedureDescriptor, bool) {
	i, ok := s.byProc[qualifiedName]
	if !ok {
		return models.ProcedureDescriptor{}, false
	}
	return s.procedures[i].Clone(), true
}

// Counts returns the number of resources and procedures.
func (s *Snapshot) Counts() (resources, procedures int) {
	return len(s.resources), len(s.procedures)
}

func sourceOf(source, name string) string {
	if source != "" {
		return source
	}
	return name
}

func failure(source string, err error) models.DiscoveryFailure {
	kind := models.ErrKindMalformedDefinition
	msg := err.Error()
	if e, ok := err.(*models.Error); ok {
		kind = e.Kind
		msg = e.Message
	}
	return models.DiscoveryFailure{Source: source, Kind: kind, Message: msg}
}
