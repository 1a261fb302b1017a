package schema

import (
	"strings"

	"github.com/bobmcallan/toolsmith/internal/models"
)

// ValidateResource checks the structural invariants of a resource descriptor.
// Field kinds outside the enumeration are left for the type mapper to reject.
func ValidateResource(r models.ResourceDescriptor) error {
	if r.TypeName == "" {
		return models.NewError(models.ErrKindMalformedDefinition, "resource has empty type name")
	}
	seen := make(map[string]bool, len(r.Fields))
	for i, f := range r.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return models.NewError(models.ErrKindMalformedDefinition, "resource %q field %d has empty name", r.TypeName, i)
		}
		if seen[f.Name] {
			return models.NewError(models.ErrKindMalformedDefinition, "resource %q has duplicate field %q", r.TypeName, f.Name)
		}
		seen[f.Name] = true
		if err := validateOptions(f.Kind, f.Options); err != nil {
			return models.NewError(models.ErrKindMalformedDefinition, "resource %q field %q: %s", r.TypeName, f.Name, err.Error())
		}
	}
	for _, p := range r.Permissions {
		if !models.ValidPermission(p) {
			return models.NewError(models.ErrKindMalformedDefinition, "resource %q has unknown permission %q", r.TypeName, p)
		}
	}
	return nil
}

// ValidateProcedure checks the structural invariants of a procedure descriptor.
func ValidateProcedure(p models.ProcedureDescriptor) error {
	if p.QualifiedName == "" {
		return models.NewError(models.ErrKindMalformedDefinition, "procedure has empty qualified name")
	}
	if strings.ContainsAny(p.QualifiedName, " /\\") {
		return models.NewError(models.ErrKindMalformedDefinition, "procedure name %q must be a dotted path", p.QualifiedName)
	}
	for _, segment := range strings.Split(p.QualifiedName, ".") {
		if segment == "" {
			return models.NewError(models.ErrKindMalformedDefinition, "procedure name %q has an empty segment", p.QualifiedName)
		}
	}
	seen := make(map[string]bool, len(p.Parameters))
	for _, param := range p.Parameters {
		if strings.TrimSpace(param.Name) == "" {
			return models.NewError(models.ErrKindMalformedDefinition, "procedure %q has a parameter with an empty name", p.QualifiedName)
		}
		if seen[param.Name] {
			return models.NewError(models.ErrKindMalformedDefinition, "procedure %q has duplicate parameter %q", p.QualifiedName, param.Name)
		}
		seen[param.Name] = true
		if err := validateOptions(param.Kind, param.Options); err != nil {
			return models.NewError(models.ErrKindMalformedDefinition, "procedure %q parameter %q: %s", p.QualifiedName, param.Name, err.Error())
		}
	}
	return nil
}

type optionError string

func (e optionError) Error() string { return string(e) }

func validateOptions(kind models.FieldKind, options []string) error {
	switch kind {
	case models.KindEnum:
		if len(options) == 0 {
			return optionError("enum field requires at least one option")
		}
	case models.KindReference:
		if len(options) != 1 || strings.TrimSpace(options[0]) == "" {
			return optionError("reference field requires exactly one target type")
		}
	}
	return nil
}
