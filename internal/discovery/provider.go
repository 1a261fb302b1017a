// Package discovery collects resource and procedure descriptors from static
// definition documents or from a live remote metadata endpoint.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/models"
)

// Discovery modes.
const (
	ModeStatic = "static"
	ModeLive   = "live"
)

// DefaultConcurrency bounds parallel metadata calls when none is configured.
const DefaultConcurrency = 8

// Frappe methods used to resolve the caller's roles.
const (
	LoggedUserMethod   = "frappe.auth.get_logged_user"
	DefaultRolesMethod = "frappe.core.doctype.user.user.get_roles"
)

// Provider is a source of discovery results. Implementations must be safe
// for sequential reuse across refreshes.
type Provider interface {
	Name() string
	Discover(ctx context.Context) (*models.DiscoveryResult, error)
}

// Options configures the provider variants.
type Options struct {
	Mode        string
	Concurrency int
	// Timeout bounds each remote metadata call.
	Timeout time.Duration

	DefinitionsDir    string
	ProcedureManifest string
	SourceDirs        []string

	ProceduresMethod string
	FallbackTypes    []string
	// CallerRoles overrides the role lookup; when empty, live discovery asks
	// the remote for the authenticated user's roles via RolesMethod.
	CallerRoles        []string
	RolesMethod        string
	IncludeChildTables bool

	CacheEnabled bool
}

// New selects the provider variant for opts.Mode and wraps it in a Cached
// provider when caching is enabled and store is non-nil.
func New(opts Options, remote MetadataClient, store interfaces.SnapshotStorage, logger *common.Logger) (Provider, error) {
	var p Provider
	switch opts.Mode {
	case "", ModeStatic:
		p = NewStatic(opts, logger)
	case ModeLive:
		if remote == nil {
			return nil, fmt.Errorf("live discovery requires a remote client")
		}
		p = NewLive(opts, remote, logger)
	default:
		return nil, fmt.Errorf("unknown discovery mode %q", opts.Mode)
	}
	if opts.CacheEnabled && store != nil {
		p = NewCached(p, store, logger)
	}
	return p, nil
}

// loadProcedures reads the manifest and scans the source directories. Manifest
// entries take precedence over scanned procedures of the same name.
func loadProcedures(ctx context.Context, opts Options, logger *common.Logger) ([]models.ProcedureDescriptor, []models.DiscoveryFailure) {
	var failures []models.DiscoveryFailure

	source := opts.ProcedureManifest
	if source == "" {
		source = "builtin"
	}
	manifest, err := LoadManifest(opts.ProcedureManifest)
	if err != nil {
		failures = append(failures, failureFromError(source, err))
		logger.Warn().Str("source", source).Str("error", err.Error()).Msg("procedure manifest skipped")
	}

	byName := make(map[string]models.ProcedureDescriptor)
	var ordered []models.ProcedureDescriptor
	// duplicate manifest entries are kept for the schema registry to report
	for _, p := range manifest.Descriptors(source) {
		byName[p.QualifiedName] = p
		ordered = append(ordered, p)
	}

	if len(opts.SourceDirs) > 0 {
		scanned, scanFailures := ScanSources(ctx, opts.SourceDirs)
		failures = append(failures, scanFailures...)
		for _, p := range scanned {
			if _, declared := byName[p.QualifiedName]; declared {
				logger.Debug().Str("procedure", p.QualifiedName).Msg("scanned procedure shadowed by manifest")
				continue
			}
			byName[p.QualifiedName] = p
			ordered = append(ordered, p)
		}
	}

	models.SortProcedures(ordered)
	return ordered, failures
}

func failureFromError(source string, err error) models.DiscoveryFailure {
	kind := models.ErrKindMalformedDefinition
	msg := err.Error()
	var e *models.Error
	if errors.As(err, &e) {
		kind = e.Kind
		msg = e.Message
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
	}
	return models.DiscoveryFailure{Source: source, Kind: kind, Message: msg}
}
