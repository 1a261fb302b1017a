// Package generator derives callable operation descriptors from resource and
// procedure descriptors.
package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/bobmcallan/toolsmith/internal/typemap"
)

// MaxListLimit bounds the page length of a list call.
const MaxListLimit = 500

// Parameter names shared by the generated resource operations.
const (
	ParamName    = "name"
	ParamFields  = "fields"
	ParamFilters = "filters"
	ParamOrderBy = "order_by"
	ParamOffset  = "offset"
	ParamLimit   = "limit"
)

// AllFields selects every field in a list or get call.
const AllFields = "*"

// Generate produces operations in a fixed order: resources by type name, each
// in list, get, create, update, delete order, then procedures by qualified
// name. Resources without permissions produce nothing. A resource or procedure
// with a kind the type mapper rejects is excluded and reported, as is any
// operation whose name collides with an earlier one.
func Generate(resources []models.ResourceDescriptor, procedures []models.ProcedureDescriptor) ([]models.OperationDescriptor, []models.DiscoveryFailure) {
	resources = append([]models.ResourceDescriptor(nil), resources...)
	procedures = append([]models.ProcedureDescriptor(nil), procedures...)
	models.SortResources(resources)
	models.SortProcedures(procedures)

	var ops []models.OperationDescriptor
	var failures []models.DiscoveryFailure
	seen := make(map[string]string)

	add := func(op models.OperationDescriptor) {
		if prev, dup := seen[op.Name]; dup {
			failures = append(failures, models.DiscoveryFailure{
				Source:  op.TargetType,
				Kind:    models.ErrKindDuplicateOperation,
				Message: fmt.Sprintf("operation %q already generated for %s", op.Name, prev),
			})
			return
		}
		seen[op.Name] = op.TargetType
		ops = append(ops, op)
	}

	for _, r := range resources {
		generated, err := resourceOperations(r)
		if err != nil {
			failures = append(failures, failureFor(r.TypeName, err))
			continue
		}
		for _, op := range generated {
			add(op)
		}
	}
	for _, p := range procedures {
		op, err := procedureOperation(p)
		if err != nil {
			failures = append(failures, failureFor(p.QualifiedName, err))
			continue
		}
		add(op)
	}
	return ops, failures
}

func failureFor(source string, err error) models.DiscoveryFailure {
	f := models.DiscoveryFailure{Source: source, Kind: models.ErrKindUnsupportedKind, Message: err.Error()}
	var e *models.Error
	if errors.As(err, &e) {
		f.Kind = e.Kind
		f.Message = e.Message
	}
	return f
}

// fieldParam is a mapped field ready to become a parameter.
type fieldParam struct {
	field  models.FieldDescriptor
	schema models.Schema
}

func resourceOperations(r models.ResourceDescriptor) ([]models.OperationDescriptor, error) {
	if r.Permissions.Empty() {
		return nil, nil
	}

	mapped := make([]fieldParam, 0, len(r.Fields))
	for _, f := range r.Fields {
		s, err := typemap.Field(f)
		if err != nil {
			return nil, annotate(err, "resource %q field %q", r.TypeName, f.Name)
		}
		if s.Description == "" && f.Label != "" {
			s.Description = f.Label
		}
		mapped = append(mapped, fieldParam{field: f, schema: s})
	}

	source := models.SourceRef{Kind: "resource", Name: r.TypeName}
	var ops []models.OperationDescriptor
	for _, kind := range models.ResourceOperationKinds {
		var op models.OperationDescriptor
		switch kind {
		case models.OpList:
			if !r.Permissions.Has(models.PermRead) {
				continue
			}
			op = models.OperationDescriptor{
				Description: fmt.Sprintf("List %s records. filters matches field values, fields selects the returned columns.", r.TypeName),
				Parameters:  listParams(r),
				Idempotent:  true,
			}
		case models.OpGet:
			if !r.Permissions.Has(models.PermRead) {
				continue
			}
			op = models.OperationDescriptor{
				Description: fmt.Sprintf("Fetch one %s by name.", r.TypeName),
				Parameters:  []models.ParameterSpec{nameParam(r.TypeName), fieldsParam(r)},
				Idempotent:  true,
			}
		case models.OpCreate:
			if !r.Permissions.Has(models.PermCreate) {
				continue
			}
			var params []models.ParameterSpec
			for _, m := range mapped {
				if !m.field.Writable() {
					continue
				}
				params = append(params, models.ParameterSpec{Name: m.field.Name, Schema: m.schema, Required: m.field.Required})
			}
			op = models.OperationDescriptor{
				Description: fmt.Sprintf("Create a %s.", r.TypeName),
				Parameters:  params,
			}
		case models.OpUpdate:
			if !r.Permissions.Has(models.PermWrite) {
				continue
			}
			params := []models.ParameterSpec{nameParam(r.TypeName)}
			for _, m := range mapped {
				if !m.field.Writable() || m.field.Name == ParamName {
					continue
				}
				params = append(params, models.ParameterSpec{Name: m.field.Name, Schema: m.schema})
			}
			op = models.OperationDescriptor{
				Description: fmt.Sprintf("Update fields of an existing %s. Only the supplied fields change.", r.TypeName),
				Parameters:  params,
				Idempotent:  true,
			}
		case models.OpDelete:
			if !r.Permissions.Has(models.PermDelete) {
				continue
			}
			op = models.OperationDescriptor{
				Description: fmt.Sprintf("Delete a %s by name.", r.TypeName),
				Parameters:  []models.ParameterSpec{nameParam(r.TypeName)},
				Idempotent:  true,
			}
		}
		op.Name = OperationName(kind, r.TypeName)
		op.Kind = kind
		op.TargetType = r.TypeName
		op.Source = source
		if op.Parameters == nil {
			op.Parameters = []models.ParameterSpec{}
		}
		if r.Module != "" {
			op.Description += " Module: " + r.Module + "."
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func nameParam(typeName string) models.ParameterSpec {
	return models.ParameterSpec{
		Name:     ParamName,
		Schema:   models.Schema{Type: models.TypeString, Description: "identifier of the " + typeName},
		Required: true,
	}
}

// fieldsParam restricts selectable columns to known fields, name, and *.
func fieldsParam(r models.ResourceDescriptor) models.ParameterSpec {
	return models.ParameterSpec{
		Name: ParamFields,
		Schema: models.Schema{
			Type:        models.TypeArray,
			Description: "fields to return",
			Items:       &models.Schema{Type: models.TypeString, Enum: selectableFields(r)},
		},
	}
}

func selectableFields(r models.ResourceDescriptor) []string {
	names := []string{ParamName}
	for _, f := range r.Fields {
		if f.Name != ParamName {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return append(names, AllFields)
}

func listParams(r models.ResourceDescriptor) []models.ParameterSpec {
	zero, one, ceiling := 0.0, 1.0, float64(MaxListLimit)
	return []models.ParameterSpec{
		{Name: ParamFilters, Schema: models.Schema{Type: models.TypeObject, Description: "field values to match, keyed by field name"}},
		fieldsParam(r),
		{Name: ParamOrderBy, Schema: models.Schema{Type: models.TypeString, Description: "sort expression such as \"modified desc\""}},
		{Name: ParamOffset, Schema: models.Schema{Type: models.TypeNumber, Format: models.FormatInteger, Minimum: &zero}},
		{Name: ParamLimit, Schema: models.Schema{Type: models.TypeNumber, Format: models.FormatInteger, Minimum: &one, Maximum: &ceiling}},
	}
}

func procedureOperation(p models.ProcedureDescriptor) (models.OperationDescriptor, error) {
	op := models.OperationDescriptor{
		Name:        OperationName(models.OpProcedure, p.QualifiedName),
		Kind:        models.OpProcedure,
		TargetType:  p.QualifiedName,
		Description: p.Description,
		Parameters:  []models.ParameterSpec{},
		Source:      models.SourceRef{Kind: "procedure", Name: p.QualifiedName},
	}
	if op.Description == "" {
		op.Description = fmt.Sprintf("Call the remote procedure %s.", p.QualifiedName)
	}

	if !p.ParametersDeclared {
		op.SchemaInferred = true
		op.AdditionalParameters = true
		return op, nil
	}

	for _, param := range p.Parameters {
		if !param.Declared() {
			desc := "undeclared parameter, passed through unchanged"
			if param.Required {
				desc += "; the remote signature has no default"
			}
			op.Parameters = append(op.Parameters, models.ParameterSpec{
				Name:     param.Name,
				Schema:   models.Schema{Type: models.TypeString, Description: desc},
				Inferred: true,
			})
			op.SchemaInferred = true
			continue
		}
		s, err := typemap.Map(param.Kind, param.Options)
		if err != nil {
			return models.OperationDescriptor{}, annotate(err, "procedure %q parameter %q", p.QualifiedName, param.Name)
		}
		op.Parameters = append(op.Parameters, models.ParameterSpec{Name: param.Name, Schema: s, Required: param.Required})
	}
	op.AdditionalParameters = p.AcceptsKeywords
	return op, nil
}

// annotate prefixes a mapper error with its location, keeping the kind.
func annotate(err error, format string, args ...interface{}) error {
	where := fmt.Sprintf(format, args...)
	var e *models.Error
	if errors.As(err, &e) {
		return models.NewError(e.Kind, "%s: %s", where, e.Message)
	}
	return fmt.Errorf("%s: %w", where, err)
}

// Fingerprint hashes the names, order and schemas of ops. Equal fingerprints
// mean an identical operation set.
func Fingerprint(ops []models.OperationDescriptor) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, op := range ops {
		// encoding a descriptor of plain values cannot fail
		_ = enc.Encode(op)
	}
	return hex.EncodeToString(h.Sum(nil))
}
