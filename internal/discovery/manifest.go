package discovery

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/bobmcallan/toolsmith/internal/models"
	"gopkg.in/yaml.v3"
)

// Manifest is the declarative list of callable remote procedures.
type Manifest struct {
	Procedures []ManifestEntry `yaml:"procedures"`
}

// ManifestEntry declares one procedure. A nil Parameters means the
// parameter list is unknown.
type ManifestEntry struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description,omitempty"`
	Parameters  *[]models.ProcedureParam `yaml:"parameters,omitempty"`
	// AcceptsKeywords allows argument names beyond Parameters.
	AcceptsKeywords bool   `yaml:"accepts_keywords,omitempty"`
	Source          string `yaml:"source,omitempty"`
}

// DefaultManifest is used when no manifest file is configured.
func DefaultManifest() Manifest {
	params := []models.ProcedureParam{
		{Name: "report_name", Kind: models.KindText, Required: true},
		{Name: "filters", Kind: models.KindText},
	}
	return Manifest{Procedures: []ManifestEntry{{
		Name:        "frappe.desk.query_report.run",
		Description: "Run a query or script report and return its columns and rows. filters is a JSON object encoded as a string.",
		Parameters:  &params,
		Source:      "builtin",
	}}}
}

// ParseManifest decodes a YAML (or JSON) manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return Manifest{}, models.WrapError(models.ErrKindMalformedDefinition, err, "invalid procedure manifest")
	}
	return m, nil
}

// LoadManifest reads a manifest file. An empty path yields DefaultManifest.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read procedure manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// Descriptors converts manifest entries into procedure descriptors.
func (m Manifest) Descriptors(source string) []models.ProcedureDescriptor {
	out := make([]models.ProcedureDescriptor, 0, len(m.Procedures))
	for _, e := range m.Procedures {
		p := models.ProcedureDescriptor{
			QualifiedName:   e.Name,
			Description:     e.Description,
			AcceptsKeywords: e.AcceptsKeywords,
			Source:          e.Source,
		}
		if p.Source == "" {
			p.Source = source
		}
		if e.Parameters != nil {
			p.Parameters = append([]models.ProcedureParam(nil), (*e.Parameters)...)
			p.ParametersDeclared = true
		}
		out = append(out, p)
	}
	return out
}

// ManifestFrom builds a manifest from descriptors, the inverse of Descriptors.
func ManifestFrom(procs []models.ProcedureDescriptor) Manifest {
	m := Manifest{Procedures: make([]ManifestEntry, 0, len(procs))}
	for _, p := range procs {
		e := ManifestEntry{Name: p.QualifiedName, Description: p.Description, AcceptsKeywords: p.AcceptsKeywords, Source: p.Source}
		if p.ParametersDeclared {
			params := append([]models.ProcedureParam{}, p.Parameters...)
			e.Parameters = &params
		}
		m.Procedures = append(m.Procedures, e)
	}
	return m
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}
