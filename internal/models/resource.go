package models

import "sort"

// Permission is a capability granted to the current caller on a resource type.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermCreate Permission = "create"
	PermDelete Permission = "delete"
)

// Permissions lists the recognised permissions in canonical order.
var Permissions = []Permission{PermRead, PermWrite, PermCreate, PermDelete}

// ValidPermission reports whether p is one of the four recognised permissions.
func ValidPermission(p Permission) bool {
	for _, known := range Permissions {
		if p == known {
			return true
		}
	}
	return false
}

// PermissionSet is a sorted, de-duplicated set of permissions.
type PermissionSet []Permission

// NewPermissionSet normalises perms into canonical order and drops duplicates
// and unrecognised values.
func NewPermissionSet(perms ...Permission) PermissionSet {
	seen := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		if ValidPermission(p) {
			seen[p] = true
		}
	}
	set := make(PermissionSet, 0, len(seen))
	for _, p := range Permissions {
		if seen[p] {
			set = append(set, p)
		}
	}
	return set
}

// Has reports whether the set contains p.
func (s PermissionSet) Has(p Permission) bool {
	for _, have := range s {
		if have == p {
			return true
		}
	}
	return false
}

// Empty reports whether no permission is granted.
func (s PermissionSet) Empty() bool {
	return len(s) == 0
}

// ResourceDescriptor is one discoverable resource type.
type ResourceDescriptor struct {
	TypeName    string            `json:"type_name" yaml:"type_name"`
	Module      string            `json:"module,omitempty" yaml:"module,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldDescriptor `json:"fields" yaml:"fields"`
	Permissions PermissionSet     `json:"permissions" yaml:"permissions"`
	Source      string            `json:"source,omitempty" yaml:"-"`
}

// Field returns the named field.
func (r ResourceDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Clone returns a deep copy so callers cannot mutate a snapshot.
func (r ResourceDescriptor) Clone() ResourceDescriptor {
	out := r
	out.Fields = make([]FieldDescriptor, len(r.Fields))
	for i, f := range r.Fields {
		f.Options = append([]string(nil), f.Options...)
		out.Fields[i] = f
	}
	out.Permissions = append(PermissionSet(nil), r.Permissions...)
	return out
}

// ProcedureParam is the declared (or inferred) shape of one procedure parameter.
// An empty Kind means the shape was not declared.
type ProcedureParam struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Required bool      `json:"required" yaml:"required"`
}

// Declared reports whether the parameter carries a declared kind.
func (p ProcedureParam) Declared() bool {
	return p.Kind != ""
}

// ProcedureDescriptor is one discoverable remote procedure.
type ProcedureDescriptor struct {
	QualifiedName string           `json:"qualified_name" yaml:"name"`
	Description   string           `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters    []ProcedureParam `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// ParametersDeclared is false when no parameter list is known at all.
	ParametersDeclared bool `json:"parameters_declared" yaml:"-"`
	// AcceptsKeywords marks a **kwargs signature: names beyond Parameters
	// are accepted.
	AcceptsKeywords bool   `json:"accepts_keywords,omitempty" yaml:"-"`
	Source          string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Clone returns a deep copy.
func (p ProcedureDescriptor) Clone() ProcedureDescriptor {
	out := p
	out.Parameters = make([]ProcedureParam, len(p.Parameters))
	for i, param := range p.Parameters {
		param.Options = append([]string(nil), param.Options...)
		out.Parameters[i] = param
	}
	return out
}

// SortResources orders resources by ascending type name.
func SortResources(rs []ResourceDescriptor) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].TypeName < rs[j].TypeName })
}

// SortProcedures orders procedures by ascending qualified name.
func SortProcedures(ps []ProcedureDescriptor) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].QualifiedName < ps[j].QualifiedName })
}
