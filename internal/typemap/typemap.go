// Package typemap maps domain field kinds onto portable schema types.
package typemap

import (
	"github.com/bobmcallan/toolsmith/internal/models"
)

// Format hints.
const (
	FormatDate     = "date"
	FormatDateTime = "date-time"
	FormatTime     = "time"
	FormatEmail    = "email"
	FormatURI      = "uri"
)

// Map returns the portable schema for a field kind. It is pure and total over
// models.FieldKinds; any other kind fails with UnsupportedKind.
func Map(kind models.FieldKind, options []string) (models.Schema, error) {
	switch kind {
	case models.KindText, models.KindRichText:
		return models.Schema{Type: models.TypeString}, nil
	case models.KindInteger:
		return models.Schema{Type: models.TypeNumber, Format: models.FormatInteger}, nil
	case models.KindDecimal:
		return models.Schema{Type: models.TypeNumber}, nil
	case models.KindBoolean:
		return models.Schema{Type: models.TypeBoolean}, nil
	case models.KindDate:
		return models.Schema{Type: models.TypeString, Format: FormatDate}, nil
	case models.KindDatetime:
		return models.Schema{Type: models.TypeString, Format: FormatDateTime}, nil
	case models.KindTime:
		return models.Schema{Type: models.TypeString, Format: FormatTime}, nil
	case models.KindEnum:
		if len(options) == 0 {
			return models.Schema{}, models.NewError(models.ErrKindMalformedDefinition, "enum kind requires options")
		}
		return models.Schema{Type: models.TypeString, Enum: append([]string(nil), options...)}, nil
	case models.KindReference:
		if len(options) != 1 {
			return models.Schema{}, models.NewError(models.ErrKindMalformedDefinition, "reference kind requires exactly one target type, got %d", len(options))
		}
		return models.Schema{Type: models.TypeString, Description: "reference to " + options[0]}, nil
	case models.KindChildCollection:
		s := models.Schema{Type: models.TypeArray, Items: &models.Schema{Type: models.TypeObject}}
		if len(options) == 1 {
			s.Description = "rows of " + options[0]
		}
		return s, nil
	case models.KindAttachment:
		return models.Schema{Type: models.TypeString, Format: FormatURI}, nil
	default:
		return models.Schema{}, models.NewError(models.ErrKindUnsupportedKind, "unsupported field kind %q", string(kind))
	}
}

// textFormats are the hints a text field may carry.
var textFormats = map[string]bool{FormatEmail: true, FormatURI: true}

// Field maps a field and applies its format hint. Hints on kinds other than
// text, and unknown hints, are ignored.
func Field(f models.FieldDescriptor) (models.Schema, error) {
	s, err := Map(f.Kind, f.Options)
	if err != nil {
		return s, err
	}
	if f.Kind == models.KindText && textFormats[f.Format] {
		s.Format = f.Format
	}
	return s, nil
}

// Supported reports whether kind is in the fixed enumeration.
func Supported(kind models.FieldKind) bool {
	for _, k := range models.FieldKinds {
		if k == kind {
			return true
		}
	}
	return false
}
