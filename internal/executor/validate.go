package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"sort"
	"time"

	"github.com/bobmcallan/toolsmith/internal/generator"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/bobmcallan/toolsmith/internal/typemap"
)

// Accepted layouts for date-like strings. Frappe itself emits the space
// separated datetime form.
var (
	dateLayouts     = []string{"2006-01-02"}
	datetimeLayouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999", "2006-01-02T15:04:05"}
	timeLayouts     = []string{"15:04:05", "15:04", "15:04:05.999999"}
)

// Validate checks args against the descriptor and returns every violation:
// declared parameters in order, then unknown names in sorted order.
func Validate(op models.OperationDescriptor, args map[string]interface{}) []models.Violation {
	var violations []models.Violation

	for _, p := range op.Parameters {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				violations = append(violations, models.Violation{Parameter: p.Name, Reason: "required parameter is missing"})
			}
			continue
		}
		// undeclared shapes pass through unchecked
		if p.Inferred {
			continue
		}
		violations = append(violations, checkValue(p.Name, p.Schema, v)...)
	}

	if op.Kind == models.OpList {
		violations = append(violations, checkFilterKeys(op, args)...)
	}

	if !op.AdditionalParameters {
		var unknown []string
		for name := range args {
			if _, ok := op.Parameter(name); !ok {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			violations = append(violations, models.Violation{Parameter: name, Reason: "unknown parameter"})
		}
	}
	return violations
}

func checkValue(path string, s models.Schema, v interface{}) []models.Violation {
	fail := func(format string, args ...interface{}) []models.Violation {
		return []models.Violation{{Parameter: path, Reason: fmt.Sprintf(format, args...)}}
	}

	switch s.Type {
	case models.TypeString:
		str, ok := v.(string)
		if !ok {
			return fail("expected string, got %s", typeName(v))
		}
		if len(s.Enum) > 0 && !contains(s.Enum, str) {
			return fail("%q is not one of %v", str, s.Enum)
		}
		if reason := checkFormat(s.Format, str); reason != "" {
			return fail("%s", reason)
		}
	case models.TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return fail("expected number, got %s", typeName(v))
		}
		if s.Format == models.FormatInteger && n != math.Trunc(n) {
			return fail("expected integer, got %v", n)
		}
		if s.Minimum != nil && n < *s.Minimum {
			return fail("%v is below the minimum %v", n, *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			return fail("%v is above the maximum %v", n, *s.Maximum)
		}
	case models.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fail("expected boolean, got %s", typeName(v))
		}
	case models.TypeArray:
		items, ok := toSlice(v)
		if !ok {
			return fail("expected array, got %s", typeName(v))
		}
		if s.Items == nil {
			return nil
		}
		var out []models.Violation
		for i, item := range items {
			out = append(out, checkValue(fmt.Sprintf("%s[%d]", path, i), *s.Items, item)...)
		}
		return out
	case models.TypeObject:
		if _, ok := v.(map[string]interface{}); !ok {
			return fail("expected object, got %s", typeName(v))
		}
	}
	return nil
}

func checkFormat(format, s string) string {
	var layouts []string
	switch format {
	case typemap.FormatDate:
		layouts = dateLayouts
	case typemap.FormatDateTime:
		layouts = datetimeLayouts
	case typemap.FormatTime:
		layouts = timeLayouts
	case typemap.FormatEmail:
		if _, err := mail.ParseAddress(s); err != nil {
			return fmt.Sprintf("%q is not a valid email", s)
		}
		return ""
	case typemap.FormatURI:
		if _, err := url.Parse(s); err != nil {
			return fmt.Sprintf("%q is not a valid uri", s)
		}
		return ""
	default:
		return ""
	}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return ""
		}
	}
	return fmt.Sprintf("%q is not a valid %s", s, format)
}

// checkFilterKeys restricts filter keys to the selectable fields of the
// resource.
func checkFilterKeys(op models.OperationDescriptor, args map[string]interface{}) []models.Violation {
	filters, ok := args[generator.ParamFilters].(map[string]interface{})
	if !ok {
		return nil
	}
	fields, ok := op.Parameter(generator.ParamFields)
	if !ok || fields.Schema.Items == nil {
		return nil
	}
	var known []string
	for _, f := range fields.Schema.Items.Enum {
		if f != generator.AllFields {
			known = append(known, f)
		}
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []models.Violation
	for _, k := range keys {
		if !contains(known, k) {
			out = append(out, models.Violation{Parameter: generator.ParamFilters + "." + k, Reason: "unknown field"})
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

func typeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case []interface{}, []string:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
