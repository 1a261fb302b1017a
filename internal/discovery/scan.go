package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bobmcallan/toolsmith/internal/models"
)

var (
	whitelistPattern = regexp.MustCompile(`^\s*@frappe\.whitelist\b`)
	decoratorPattern = regexp.MustCompile(`^\s*@`)
	defPattern       = regexp.MustCompile(`^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// annotationKinds maps the scalar annotations the scan understands.
var annotationKinds = map[string]models.FieldKind{
	"str":   models.KindText,
	"int":   models.KindInteger,
	"float": models.KindDecimal,
	"bool":  models.KindBoolean,
}

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
}

// ScanSources walks each root for *.py files and extracts every function
// marked with the frappe whitelist decorator. Qualified names are the dotted
// path of the file relative to its root followed by the function name.
func ScanSources(ctx context.Context, roots []string) ([]models.ProcedureDescriptor, []models.DiscoveryFailure) {
	var procs []models.ProcedureDescriptor
	var failures []models.DiscoveryFailure

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				failures = append(failures, scanFailure(path, err.Error()))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if path != root && (skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".py" {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			data, err := os.ReadFile(path)
			if err != nil {
				failures = append(failures, scanFailure(rel, err.Error()))
				return nil
			}
			found, bad := scanFile(moduleName(rel), filepath.ToSlash(rel), data)
			procs = append(procs, found...)
			failures = append(failures, bad...)
			return nil
		})
		if err != nil {
			failures = append(failures, scanFailure(root, err.Error()))
		}
	}

	models.SortProcedures(procs)
	return procs, failures
}

// moduleName converts a relative file path into a dotted module path.
func moduleName(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	parts := strings.Split(rel, "/")
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func scanFailure(source, msg string) models.DiscoveryFailure {
	return models.DiscoveryFailure{Source: source, Kind: models.ErrKindMalformedDefinition, Message: msg}
}

// scanFile extracts whitelisted functions from one source file.
func scanFile(module, rel string, data []byte) ([]models.ProcedureDescriptor, []models.DiscoveryFailure) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, []models.DiscoveryFailure{scanFailure(rel, err.Error())}
	}

	var procs []models.ProcedureDescriptor
	var failures []models.DiscoveryFailure
	for i := 0; i < len(lines); i++ {
		if !whitelistPattern.MatchString(lines[i]) {
			continue
		}
		decoratorLine := i + 1

		// further decorators and blank lines may sit between the whitelist and the def
		j := i + 1
		for j < len(lines) && (strings.TrimSpace(lines[j]) == "" || decoratorPattern.MatchString(lines[j])) {
			j++
		}
		if j >= len(lines) {
			failures = append(failures, scanFailure(fmt.Sprintf("%s:%d", rel, decoratorLine), "whitelist decorator is not followed by a function"))
			break
		}
		m := defPattern.FindStringSubmatch(lines[j])
		if m == nil {
			failures = append(failures, scanFailure(fmt.Sprintf("%s:%d", rel, decoratorLine), "whitelist decorator is not followed by a function"))
			continue
		}

		signature, end, ok := collectSignature(lines, j)
		if !ok {
			failures = append(failures, scanFailure(fmt.Sprintf("%s:%d", rel, j+1), "unterminated function signature"))
			continue
		}

		name := m[1]
		qualified := name
		if module != "" {
			qualified = module + "." + name
		}
		params, keywords := parseParams(signature)
		procs = append(procs, models.ProcedureDescriptor{
			QualifiedName:      qualified,
			Description:        docstring(lines, end+1),
			Parameters:         params,
			ParametersDeclared: true,
			AcceptsKeywords:    keywords,
			Source:             fmt.Sprintf("%s:%d", rel, j+1),
		})
		i = end
	}
	return procs, failures
}

// collectSignature returns the text between the parentheses of the def that
// starts on line start, and the line the signature closes on.
func collectSignature(lines []string, start int) (string, int, bool) {
	var b strings.Builder
	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch {
			case r == '(':
				depth++
				if depth == 1 && !opened {
					opened = true
					continue
				}
			case r == ')':
				depth--
				if opened && depth == 0 {
					return b.String(), i, true
				}
			}
			if opened {
				b.WriteRune(r)
			}
		}
		if opened {
			b.WriteRune(' ')
		}
	}
	return "", 0, false
}

// parseParams splits a signature on top-level commas. keywords reports a
// **kwargs catch-all.
func parseParams(signature string) (params []models.ProcedureParam, keywords bool) {
	params = make([]models.ProcedureParam, 0)
	for _, raw := range splitTopLevel(signature, ',') {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "**") {
			keywords = true
			continue
		}
		if raw == "" || raw == "/" || strings.HasPrefix(raw, "*") {
			continue
		}
		name := raw
		annotation := ""
		hasDefault := false
		if parts := splitTopLevel(raw, '='); len(parts) > 1 {
			name = parts[0]
			hasDefault = true
		}
		if k := strings.Index(name, ":"); k >= 0 {
			annotation = strings.TrimSpace(name[k+1:])
			name = name[:k]
		}
		name = strings.TrimSpace(name)
		if name == "self" || name == "cls" {
			continue
		}
		params = append(params, models.ProcedureParam{
			Name:     name,
			Kind:     annotationKind(annotation),
			Required: !hasDefault,
		})
	}
	return params, keywords
}

// annotationKind resolves str, int, float and bool annotations, including
// their optional forms. Anything else is left undeclared.
func annotationKind(annotation string) models.FieldKind {
	a := strings.ReplaceAll(annotation, " ", "")
	if strings.HasPrefix(a, "Optional[") && strings.HasSuffix(a, "]") {
		a = a[len("Optional[") : len(a)-1]
	}
	if parts := strings.Split(a, "|"); len(parts) == 2 {
		switch {
		case parts[1] == "None":
			a = parts[0]
		case parts[0] == "None":
			a = parts[1]
		}
	}
	return annotationKinds[a]
}

// splitTopLevel splits s on sep outside brackets and quotes.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	var quote rune
	last := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == sep && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
			// only the first = separates a default
			if sep == '=' {
				return append(parts, s[last:])
			}
		}
	}
	return append(parts, s[last:])
}

// docstring returns the first line of the docstring starting at or after line.
func docstring(lines []string, line int) string {
	for i := line; i < len(lines); i++ {
		text := strings.TrimSpace(lines[i])
		if text == "" {
			continue
		}
		for _, q := range []string{`"""`, `'''`} {
			if strings.HasPrefix(text, q) {
				text = strings.TrimPrefix(text, q)
				if k := strings.Index(text, q); k >= 0 {
					return strings.TrimSpace(text[:k])
				}
				if text = strings.TrimSpace(text); text != "" {
					return text
				}
				if i+1 < len(lines) {
					return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(lines[i+1]), q))
				}
			}
		}
		return ""
	}
	return ""
}
