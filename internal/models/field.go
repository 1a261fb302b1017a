package models

// FieldKind is the fixed enumeration of domain field kinds.
type FieldKind string

const (
	KindText            FieldKind = "text"
	KindInteger         FieldKind = "integer"
	KindDecimal         FieldKind = "decimal"
	KindDate            FieldKind = "date"
	KindDatetime        FieldKind = "datetime"
	KindTime            FieldKind = "time"
	KindBoolean         FieldKind = "boolean"
	KindEnum            FieldKind = "enum"
	KindReference       FieldKind = "reference"
	KindChildCollection FieldKind = "child-collection"
	KindRichText        FieldKind = "rich-text"
	KindAttachment      FieldKind = "attachment"
)

// FieldKinds lists every supported kind in declaration order.
var FieldKinds = []FieldKind{
	KindText, KindInteger, KindDecimal, KindDate, KindDatetime, KindTime,
	KindBoolean, KindEnum, KindReference, KindChildCollection, KindRichText, KindAttachment,
}

// FieldDescriptor is one field of a resource type.
type FieldDescriptor struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Label    string    `json:"label,omitempty" yaml:"label,omitempty"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"` // enum values, or the referenced type for reference
	Required bool      `json:"required" yaml:"required"`
	ReadOnly bool      `json:"read_only" yaml:"read_only"`
	// Format narrows a text field, e.g. "email" or "uri".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Writable reports whether the field may be supplied on create or update.
func (f FieldDescriptor) Writable() bool {
	return !f.ReadOnly
}

// ReferencedType returns the target type of a reference field, or "".
func (f FieldDescriptor) ReferencedType() string {
	if f.Kind != KindReference || len(f.Options) != 1 {
		return ""
	}
	return f.Options[0]
}
