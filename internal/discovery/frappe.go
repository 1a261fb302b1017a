package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/bobmcallan/toolsmith/internal/typemap"
)

// frappeKinds maps Frappe fieldtypes onto field kinds. Types absent from both
// this table and layoutTypes are carried through verbatim so the type mapper
// rejects them.
var frappeKinds = map[string]models.FieldKind{
	"Data":              models.KindText,
	"Small Text":        models.KindText,
	"Long Text":         models.KindText,
	"Text":              models.KindText,
	"Code":              models.KindText,
	"Password":          models.KindText,
	"Read Only":         models.KindText,
	"Dynamic Link":      models.KindText,
	"Phone":             models.KindText,
	"Autocomplete":      models.KindText,
	"Barcode":           models.KindText,
	"Color":             models.KindText,
	"Duration":          models.KindText,
	"Geolocation":       models.KindText,
	"JSON":              models.KindText,
	"Icon":              models.KindText,
	"Signature":         models.KindText,
	"Rating":            models.KindDecimal,
	"Int":               models.KindInteger,
	"Float":             models.KindDecimal,
	"Currency":          models.KindDecimal,
	"Percent":           models.KindDecimal,
	"Date":              models.KindDate,
	"Datetime":          models.KindDatetime,
	"Time":              models.KindTime,
	"Check":             models.KindBoolean,
	"Select":            models.KindEnum,
	"Link":              models.KindReference,
	"Table":             models.KindChildCollection,
	"Table MultiSelect": models.KindChildCollection,
	"Text Editor":       models.KindRichText,
	"HTML Editor":       models.KindRichText,
	"Markdown Editor":   models.KindRichText,
	"Attach":            models.KindAttachment,
	"Attach Image":      models.KindAttachment,
}

// layoutTypes carry no data and never become fields.
var layoutTypes = map[string]bool{
	"Section Break": true,
	"Column Break":  true,
	"Tab Break":     true,
	"HTML":          true,
	"Heading":       true,
	"Button":        true,
	"Fold":          true,
	"Image":         true,
}

// flexBool accepts Frappe's 0/1 integers as well as JSON booleans and strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch s {
	case "", "null", "0", "false":
		*b = false
		return nil
	case "1", "true":
		*b = true
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid flag value %s", data)
	}
	*b = f != 0
	return nil
}

type frappeDocType struct {
	Doctype     string             `json:"doctype"`
	Name        string             `json:"name"`
	Module      string             `json:"module"`
	Description string             `json:"description"`
	IsTable     flexBool           `json:"istable"`
	Fields      []frappeField      `json:"fields"`
	Permissions []frappePermission `json:"permissions"`
}

type frappeField struct {
	Fieldname string   `json:"fieldname"`
	Fieldtype string   `json:"fieldtype"`
	Label     string   `json:"label"`
	Options   string   `json:"options"`
	Reqd      flexBool `json:"reqd"`
	ReadOnly  flexBool `json:"read_only"`
}

type frappePermission struct {
	Role      string   `json:"role"`
	Permlevel int      `json:"permlevel"`
	Read      flexBool `json:"read"`
	Write     flexBool `json:"write"`
	Create    flexBool `json:"create"`
	Delete    flexBool `json:"delete"`
}

// dataFormats maps the options of a Data field onto a format hint.
var dataFormats = map[string]string{
	"Email": typemap.FormatEmail,
	"URL":   typemap.FormatURI,
}

// FrappeDecoder turns DocType metadata documents into resource descriptors.
type FrappeDecoder struct {
	// CallerRoles restricts permission rows to these roles; empty means all
	// rows unless RolesResolved is set.
	CallerRoles []string
	// RolesResolved filters by CallerRoles even when it is empty, for a
	// caller the remote reported as holding no roles.
	RolesResolved      bool
	IncludeChildTables bool
}

// IsDocType reports whether data looks like a Frappe DocType document.
func IsDocType(data []byte) bool {
	var probe struct {
		Doctype string `json:"doctype"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Doctype == "DocType"
}

// Decode parses one DocType document.
func (d FrappeDecoder) Decode(data []byte) (models.ResourceDescriptor, error) {
	var doc frappeDocType
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.ResourceDescriptor{}, models.WrapError(models.ErrKindMalformedDefinition, err, "invalid DocType document")
	}
	if strings.TrimSpace(doc.Name) == "" {
		return models.ResourceDescriptor{}, models.NewError(models.ErrKindMalformedDefinition, "DocType document has no name")
	}

	r := models.ResourceDescriptor{
		TypeName:    doc.Name,
		Module:      doc.Module,
		Description: doc.Description,
		Fields:      make([]models.FieldDescriptor, 0, len(doc.Fields)),
	}
	for _, f := range doc.Fields {
		if layoutTypes[f.Fieldtype] {
			continue
		}
		r.Fields = append(r.Fields, decodeField(f))
	}
	if !bool(doc.IsTable) || d.IncludeChildTables {
		r.Permissions = d.permissions(doc.Permissions)
	}
	return r, nil
}

func decodeField(f frappeField) models.FieldDescriptor {
	kind, ok := frappeKinds[f.Fieldtype]
	if !ok {
		kind = models.FieldKind(f.Fieldtype)
	}
	fd := models.FieldDescriptor{
		Name:     f.Fieldname,
		Kind:     kind,
		Label:    f.Label,
		Required: bool(f.Reqd),
		ReadOnly: bool(f.ReadOnly) || f.Fieldtype == "Read Only",
	}
	switch kind {
	case models.KindEnum:
		fd.Options = selectOptions(f.Options)
	case models.KindReference, models.KindChildCollection:
		if target := strings.TrimSpace(f.Options); target != "" {
			fd.Options = []string{target}
		}
	case models.KindText:
		if f.Fieldtype == "Data" {
			fd.Format = dataFormats[strings.TrimSpace(f.Options)]
		}
	}
	return fd
}

// selectOptions splits Frappe's newline separated Select options.
func selectOptions(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// permissions is the union of level-0 rows granted to the caller's roles.
func (d FrappeDecoder) permissions(rows []frappePermission) models.PermissionSet {
	roles := make(map[string]bool, len(d.CallerRoles))
	for _, r := range d.CallerRoles {
		roles[r] = true
	}
	var perms []models.Permission
	for _, row := range rows {
		if row.Permlevel != 0 {
			continue
		}
		if (len(roles) > 0 || d.RolesResolved) && !roles[row.Role] {
			continue
		}
		if row.Read {
			perms = append(perms, models.PermRead)
		}
		if row.Write {
			perms = append(perms, models.PermWrite)
		}
		if row.Create {
			perms = append(perms, models.PermCreate)
		}
		if row.Delete {
			perms = append(perms, models.PermDelete)
		}
	}
	return models.NewPermissionSet(perms...)
}
