package models

// OperationKind is the kind of a generated operation.
type OperationKind string

const (
	OpList      OperationKind = "list"
	OpGet       OperationKind = "get"
	OpCreate    OperationKind = "create"
	OpUpdate    OperationKind = "update"
	OpDelete    OperationKind = "delete"
	OpProcedure OperationKind = "procedure"
)

// ResourceOperationKinds is the fixed per-resource generation order.
var ResourceOperationKinds = []OperationKind{OpList, OpGet, OpCreate, OpUpdate, OpDelete}

// ValidOperationKind reports whether k is a known operation kind.
func ValidOperationKind(k OperationKind) bool {
	switch k {
	case OpList, OpGet, OpCreate, OpUpdate, OpDelete, OpProcedure:
		return true
	}
	return false
}

// PortableType is a portable schema type tag.
type PortableType string

const (
	TypeString  PortableType = "string"
	TypeNumber  PortableType = "number"
	TypeBoolean PortableType = "boolean"
	TypeArray   PortableType = "array"
	TypeObject  PortableType = "object"
)

// FormatInteger qualifies a number as integral.
const FormatInteger = "integer"

// Schema is the portable type of a single value.
type Schema struct {
	Type        PortableType `json:"type"`
	Format      string       `json:"format,omitempty"`
	Enum        []string     `json:"enum,omitempty"`
	Description string       `json:"description,omitempty"`
	Items       *Schema      `json:"items,omitempty"`
	Minimum     *float64     `json:"minimum,omitempty"`
	Maximum     *float64     `json:"maximum,omitempty"`
}

// ParameterSpec is one named parameter of an operation.
type ParameterSpec struct {
	Name     string `json:"name"`
	Schema   Schema `json:"schema"`
	Required bool   `json:"required"`
	// Inferred marks a parameter whose shape was not declared by the source.
	Inferred bool `json:"inferred,omitempty"`
}

// SourceRef points back at the descriptor an operation was derived from.
type SourceRef struct {
	Kind string `json:"kind"` // "resource" or "procedure"
	Name string `json:"name"`
}

// OperationDescriptor is a generated, callable unit.
type OperationDescriptor struct {
	Name        string          `json:"name"`
	Kind        OperationKind   `json:"kind"`
	TargetType  string          `json:"target_type"`
	Description string          `json:"description"`
	Parameters  []ParameterSpec `json:"parameters"`
	// SchemaInferred is set when any parameter shape was not declared; callers
	// should treat the schema as a passthrough hint.
	SchemaInferred bool `json:"schema_inferred"`
	// AdditionalParameters allows argument names outside Parameters.
	AdditionalParameters bool      `json:"additional_parameters,omitempty"`
	Idempotent           bool      `json:"idempotent"`
	Source               SourceRef `json:"source"`
}

// Parameter returns the named parameter spec.
func (o OperationDescriptor) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range o.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// RequiredParameters returns the names of required parameters in order.
func (o OperationDescriptor) RequiredParameters() []string {
	var names []string
	for _, p := range o.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Clone returns a deep copy.
func (o OperationDescriptor) Clone() OperationDescriptor {
	out := o
	out.Parameters = make([]ParameterSpec, len(o.Parameters))
	for i, p := range o.Parameters {
		p.Schema = p.Schema.clone()
		out.Parameters[i] = p
	}
	return out
}

func (s Schema) clone() Schema {
	out := s
	out.Enum = append([]string(nil), s.Enum...)
	if s.Items != nil {
		items := s.Items.clone()
		out.Items = &items
	}
	return out
}
