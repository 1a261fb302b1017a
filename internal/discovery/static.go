package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/models"
	"gopkg.in/yaml.v3"
)

// definitionExts are the document types read from the definitions directory.
var definitionExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Static discovers resources from definition documents on disk and
// procedures from the manifest and source scan.
type Static struct {
	opts    Options
	decoder FrappeDecoder
	logger  *common.Logger
}

// NewStatic creates a static provider.
func NewStatic(opts Options, logger *common.Logger) *Static {
	return &Static{
		opts:    opts,
		decoder: FrappeDecoder{CallerRoles: opts.CallerRoles, IncludeChildTables: opts.IncludeChildTables},
		logger:  logger,
	}
}

// Name identifies the provider.
func (s *Static) Name() string {
	return ModeStatic
}

// Discover parses every definition document. A bad document is reported in
// Failures and never aborts the scan.
func (s *Static) Discover(ctx context.Context) (*models.DiscoveryResult, error) {
	result := &models.DiscoveryResult{
		Provider:    s.Name(),
		CollectedAt: time.Now().UTC(),
	}

	if s.opts.DefinitionsDir != "" {
		paths, err := definitionFiles(s.opts.DefinitionsDir)
		if err != nil {
			return nil, models.WrapError(models.ErrKindDiscoveryUnavailable, err, "definitions directory %s is unreadable", s.opts.DefinitionsDir)
		}
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, models.WrapError(models.ErrKindDiscoveryUnavailable, err, "static discovery interrupted")
			}
			rel, err := filepath.Rel(s.opts.DefinitionsDir, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			r, err := s.readDefinition(path)
			if err != nil {
				s.logger.Warn().Str("source", rel).Str("error", err.Error()).Msg("definition skipped")
				result.Failures = append(result.Failures, failureFromError(rel, err))
				continue
			}
			r.Source = rel
			result.Resources = append(result.Resources, r)
		}
	}

	procs, failures := loadProcedures(ctx, s.opts, s.logger)
	result.Procedures = procs
	result.Failures = append(result.Failures, failures...)

	s.logger.Info().
		Int("resources", len(result.Resources)).
		Int("procedures", len(result.Procedures)).
		Int("failures", len(result.Failures)).
		Msg("static discovery complete")
	return result, nil
}

// definitionFiles lists definition documents under dir in lexical order.
func definitionFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if definitionExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Static) readDefinition(path string) (models.ResourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ResourceDescriptor{}, models.WrapError(models.ErrKindMalformedDefinition, err, "unreadable definition")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return models.ResourceDescriptor{}, models.NewError(models.ErrKindMalformedDefinition, "empty definition document")
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if IsDocType(data) {
			return s.decoder.Decode(data)
		}
		return decodeNativeJSON(data)
	}
	return decodeNativeYAML(data)
}

func decodeNativeJSON(data []byte) (models.ResourceDescriptor, error) {
	var r models.ResourceDescriptor
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return models.ResourceDescriptor{}, models.WrapError(models.ErrKindMalformedDefinition, err, "invalid definition document")
	}
	return r, checkNative(r)
}

func decodeNativeYAML(data []byte) (models.ResourceDescriptor, error) {
	var r models.ResourceDescriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		if err == io.EOF {
			return models.ResourceDescriptor{}, models.NewError(models.ErrKindMalformedDefinition, "empty definition document")
		}
		return models.ResourceDescriptor{}, models.WrapError(models.ErrKindMalformedDefinition, err, "invalid definition document")
	}
	return r, checkNative(r)
}

// checkNative rejects problems the schema registry would otherwise normalise
// away, so the document author hears about them.
func checkNative(r models.ResourceDescriptor) error {
	if strings.TrimSpace(r.TypeName) == "" {
		return models.NewError(models.ErrKindMalformedDefinition, "definition has no type_name")
	}
	for _, p := range r.Permissions {
		if !models.ValidPermission(p) {
			return models.NewError(models.ErrKindMalformedDefinition, "definition %q has unknown permission %q", r.TypeName, p)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
