package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/toolsmith/internal/client"
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/models"
	"golang.org/x/sync/errgroup"
)

// MetadataClient is the part of the remote API live discovery needs.
type MetadataClient interface {
	ListResourceTypes(ctx context.Context) ([]client.ResourceTypeSummary, error)
	GetResourceMetadata(ctx context.Context, resourceType string) (json.RawMessage, error)
	CallProcedure(ctx context.Context, qualifiedName string, args map[string]interface{}) (*client.Response, error)
}

// Live discovers resources by querying the remote metadata endpoints.
type Live struct {
	opts    Options
	remote  MetadataClient
	decoder FrappeDecoder
	logger  *common.Logger
}

// NewLive creates a live provider.
func NewLive(opts Options, remote MetadataClient, logger *common.Logger) *Live {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Live{
		opts:    opts,
		remote:  remote,
		decoder: FrappeDecoder{CallerRoles: opts.CallerRoles, IncludeChildTables: opts.IncludeChildTables},
		logger:  logger,
	}
}

// Name identifies the provider.
func (l *Live) Name() string {
	return ModeLive
}

// Discover lists resource types and fetches each type's metadata concurrently.
// A failing type is recorded and excluded; the refresh fails only when no
// type succeeds.
func (l *Live) Discover(ctx context.Context) (*models.DiscoveryResult, error) {
	start := time.Now()
	result := &models.DiscoveryResult{
		Provider:    l.Name(),
		CollectedAt: start.UTC(),
	}

	types, err := l.resourceTypes(ctx)
	if err != nil {
		if len(l.opts.FallbackTypes) == 0 {
			return nil, models.WrapError(models.ErrKindDiscoveryUnavailable, err, "resource type listing failed")
		}
		l.logger.Warn().Str("error", err.Error()).Int("fallback_types", len(l.opts.FallbackTypes)).Msg("resource type listing failed, using fallback types")
		result.Failures = append(result.Failures, models.DiscoveryFailure{
			Source:  "DocType",
			Kind:    models.ErrKindDiscoveryUnavailable,
			Message: fmt.Sprintf("listing failed, using %d fallback types: %v", len(l.opts.FallbackTypes), err),
		})
		types = l.opts.FallbackTypes
	}
	if len(types) == 0 {
		return nil, models.NewError(models.ErrKindDiscoveryUnavailable, "remote reported no resource types")
	}

	decoder := l.decoder
	if len(l.opts.CallerRoles) == 0 {
		roles, err := l.callerRoles(ctx)
		if err != nil {
			l.logger.Warn().Str("error", err.Error()).Msg("caller role lookup failed, permissions are the union of all roles")
			result.Failures = append(result.Failures, models.DiscoveryFailure{
				Source:  l.rolesMethod(),
				Kind:    models.ErrKindDiscoveryUnavailable,
				Message: fmt.Sprintf("role lookup failed, using all permission rows: %v", err),
			})
		} else {
			decoder.CallerRoles = roles
			decoder.RolesResolved = true
		}
	}

	resources := make([]*models.ResourceDescriptor, len(types))
	failures := make([]*models.DiscoveryFailure, len(types))

	// Workers never return an error, so one failure cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(l.opts.Concurrency)
	for i, name := range types {
		i, name := i, name
		g.Go(func() error {
			r, err := l.fetch(ctx, decoder, name)
			if err != nil {
				f := failureFromError(name, err)
				failures[i] = &f
				return nil
			}
			resources[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	for i := range types {
		if resources[i] != nil {
			result.Resources = append(result.Resources, *resources[i])
		}
		if failures[i] != nil {
			l.logger.Warn().Str("type", failures[i].Source).Str("error", failures[i].Message).Msg("resource metadata skipped")
			result.Failures = append(result.Failures, *failures[i])
		}
	}
	if len(result.Resources) == 0 {
		return nil, models.NewError(models.ErrKindDiscoveryUnavailable, "metadata failed for all %d resource types", len(types))
	}

	procs, procFailures := l.procedures(ctx)
	result.Procedures = procs
	result.Failures = append(result.Failures, procFailures...)

	l.logger.Info().
		Int("resources", len(result.Resources)).
		Int("procedures", len(result.Procedures)).
		Int("failures", len(result.Failures)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("live discovery complete")
	return result, nil
}

// resourceTypes lists type names, leaving out child tables unless they are
// wanted.
func (l *Live) resourceTypes(ctx context.Context) ([]string, error) {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	summaries, err := l.remote.ListResourceTypes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s.IsTable != 0 && !l.opts.IncludeChildTables {
			continue
		}
		names = append(names, s.Name)
	}
	return names, nil
}

func (l *Live) fetch(ctx context.Context, decoder FrappeDecoder, name string) (models.ResourceDescriptor, error) {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	raw, err := l.remote.GetResourceMetadata(ctx, name)
	if err != nil {
		return models.ResourceDescriptor{}, metadataError(name, err)
	}
	r, err := decoder.Decode(raw)
	if err != nil {
		return models.ResourceDescriptor{}, err
	}
	r.Source = "remote:" + name
	return r, nil
}

func (l *Live) rolesMethod() string {
	if l.opts.RolesMethod != "" {
		return l.opts.RolesMethod
	}
	return DefaultRolesMethod
}

// callerRoles asks the remote who the configured credentials belong to and
// which roles that user holds.
func (l *Live) callerRoles(ctx context.Context) ([]string, error) {
	var user string
	if err := l.callMessage(ctx, LoggedUserMethod, nil, &user); err != nil {
		return nil, err
	}
	if user == "" {
		return nil, fmt.Errorf("%s returned no user", LoggedUserMethod)
	}
	var roles []string
	if err := l.callMessage(ctx, l.rolesMethod(), map[string]interface{}{"uid": user}, &roles); err != nil {
		return nil, err
	}
	l.logger.Debug().Str("user", user).Int("roles", len(roles)).Msg("caller roles resolved")
	return roles, nil
}

// callMessage calls a remote method and decodes its message into out.
func (l *Live) callMessage(ctx context.Context, method string, args map[string]interface{}, out interface{}) error {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	resp, err := l.remote.CallProcedure(ctx, method, args)
	if err != nil {
		return err
	}
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if len(envelope.Message) == 0 {
		return fmt.Errorf("%s response has no message", method)
	}
	if err := json.Unmarshal(envelope.Message, out); err != nil {
		return fmt.Errorf("unexpected %s message: %w", method, err)
	}
	return nil
}

// metadataError classifies a per-type metadata failure.
func metadataError(name string, err error) error {
	var se *client.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized:
			return models.WrapError(models.ErrKindUnauthorized, err, "metadata for %s", name)
		case http.StatusForbidden:
			return models.WrapError(models.ErrKindPermissionDenied, err, "metadata for %s", name)
		case http.StatusNotFound:
			return models.WrapError(models.ErrKindNotFound, err, "metadata for %s", name)
		}
	}
	return models.WrapError(models.ErrKindDiscoveryUnavailable, err, "metadata for %s", name)
}

func (l *Live) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.Timeout > 0 {
		return context.WithTimeout(ctx, l.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// procedures enumerates procedures remotely when a method is configured,
// otherwise (or on failure) from the manifest and source scan.
func (l *Live) procedures(ctx context.Context) ([]models.ProcedureDescriptor, []models.DiscoveryFailure) {
	if l.opts.ProceduresMethod == "" {
		return loadProcedures(ctx, l.opts, l.logger)
	}

	procs, err := l.remoteProcedures(ctx)
	if err == nil {
		return procs, nil
	}
	l.logger.Warn().Str("method", l.opts.ProceduresMethod).Str("error", err.Error()).Msg("procedure listing failed, using manifest")
	fallback, failures := loadProcedures(ctx, l.opts, l.logger)
	failures = append([]models.DiscoveryFailure{{
		Source:  l.opts.ProceduresMethod,
		Kind:    models.ErrKindDiscoveryUnavailable,
		Message: err.Error(),
	}}, failures...)
	return fallback, failures
}

// remoteProcedures accepts either a list of names or a list of manifest
// entries in the method's message.
func (l *Live) remoteProcedures(ctx context.Context) ([]models.ProcedureDescriptor, error) {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	resp, err := l.remote.CallProcedure(ctx, l.opts.ProceduresMethod, nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse procedure listing: %w", err)
	}

	source := "remote:" + l.opts.ProceduresMethod
	var names []string
	if err := json.Unmarshal(envelope.Message, &names); err == nil {
		procs := make([]models.ProcedureDescriptor, 0, len(names))
		for _, n := range names {
			procs = append(procs, models.ProcedureDescriptor{QualifiedName: n, Source: source})
		}
		models.SortProcedures(procs)
		return procs, nil
	}

	var entries []struct {
		Name        string                   `json:"name"`
		Description string                   `json:"description"`
		Parameters  *[]models.ProcedureParam `json:"parameters"`
		Keywords    bool                     `json:"accepts_keywords"`
	}
	if err := json.Unmarshal(envelope.Message, &entries); err != nil {
		return nil, fmt.Errorf("unexpected procedure listing shape: %w", err)
	}
	m := Manifest{Procedures: make([]ManifestEntry, 0, len(entries))}
	for _, e := range entries {
		m.Procedures = append(m.Procedures, ManifestEntry{Name: e.Name, Description: e.Description, Parameters: e.Parameters, AcceptsKeywords: e.Keywords})
	}
	procs := m.Descriptors(source)
	models.SortProcedures(procs)
	return procs, nil
}
