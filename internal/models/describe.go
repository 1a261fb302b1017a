package models

import "github.com/google/jsonschema-go/jsonschema"

// OperationSchema is the full description of one operation as returned to a
// consumer choosing what to call.
type OperationSchema struct {
	Operation   OperationDescriptor `json:"operation"`
	InputSchema *jsonschema.Schema  `json:"input_schema"`
	// Fields and Permissions are set for resource operations only.
	Fields      []FieldDescriptor `json:"fields,omitempty"`
	Permissions PermissionSet     `json:"permissions,omitempty"`
}
