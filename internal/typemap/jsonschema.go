package typemap

import (
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/google/jsonschema-go/jsonschema"
)

// ToJSONSchema renders an operation's parameters as a JSON Schema object.
// Additional properties are rejected unless the operation allows them.
func ToJSONSchema(op models.OperationDescriptor) *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(op.Parameters)),
	}
	for _, p := range op.Parameters {
		prop := schemaFor(p.Schema)
		if p.Inferred && prop.Description == "" {
			prop.Description = "undeclared parameter, passed through unchanged"
		}
		root.Properties[p.Name] = prop
		if p.Required {
			root.Required = append(root.Required, p.Name)
		}
	}
	if !op.AdditionalParameters {
		root.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	}
	return root
}

func schemaFor(s models.Schema) *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:        string(s.Type),
		Format:      s.Format,
		Description: s.Description,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	if s.Type == models.TypeNumber && s.Format == models.FormatInteger {
		out.Type = "integer"
		out.Format = ""
	}
	if len(s.Enum) > 0 {
		out.Enum = make([]any, len(s.Enum))
		for i, v := range s.Enum {
			out.Enum[i] = v
		}
	}
	if s.Items != nil {
		out.Items = schemaFor(*s.Items)
	}
	return out
}
