// Package registry owns the current generation of operation descriptors and
// replaces it atomically on refresh.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/discovery"
	"github.com/bobmcallan/toolsmith/internal/generator"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/bobmcallan/toolsmith/internal/schema"
)

// Snapshot is one complete, immutable generation of operations.
type Snapshot struct {
	Revision    int64
	Version     string
	BuiltAt     time.Time
	Provider    string
	Fingerprint string

	ops       []models.OperationDescriptor
	index     map[string]int
	resources map[string]models.ResourceDescriptor
	failures  []models.DiscoveryFailure
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Fingerprint: generator.Fingerprint(nil),
		index:       map[string]int{},
		resources:   map[string]models.ResourceDescriptor{},
	}
}

// Len returns the number of operations.
func (s *Snapshot) Len() int {
	return len(s.ops)
}

// Failures returns the discovery and generation failures of this generation.
func (s *Snapshot) Failures() []models.DiscoveryFailure {
	return append([]models.DiscoveryFailure(nil), s.failures...)
}

// Operations returns copies of every operation in generation order.
func (s *Snapshot) Operations() []models.OperationDescriptor {
	out := make([]models.OperationDescriptor, len(s.ops))
	for i, op := range s.ops {
		out[i] = op.Clone()
	}
	return out
}

// Subscriber is called after every swap with the new snapshot.
type Subscriber func(snap *Snapshot, diff models.RegistryDiff)

// Registry holds the active Snapshot. Readers never lock; refreshes are
// serialized and publish with a single pointer store.
type Registry struct {
	provider discovery.Provider
	logger   *common.Logger

	current atomic.Pointer[Snapshot]
	refresh sync.Mutex

	lastAttempt atomic.Pointer[time.Time]
	lastErr     atomic.Pointer[string]

	subMu       sync.RWMutex
	subscribers []Subscriber
}

// New creates an empty registry. provider may be nil when results are only
// supplied through Apply.
func New(provider discovery.Provider, logger *common.Logger) *Registry {
	r := &Registry{provider: provider, logger: logger}
	r.current.Store(emptySnapshot())
	return r
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Refresh runs discovery and applies the result. On failure the previous
// snapshot stays active and the error is returned.
func (r *Registry) Refresh(ctx context.Context) (models.RegistryDiff, error) {
	if r.provider == nil {
		return models.RegistryDiff{}, models.NewError(models.ErrKindDiscoveryUnavailable, "no discovery provider configured")
	}
	r.refresh.Lock()
	defer r.refresh.Unlock()

	start := time.Now()
	result, err := r.provider.Discover(ctx)
	if err != nil {
		r.recordAttempt(err)
		r.logger.Warn().
			Str("provider", r.provider.Name()).
			Str("error", err.Error()).
			Int64("revision", r.Current().Revision).
			Msg("refresh failed, keeping previous snapshot")
		var e *models.Error
		if !errors.As(err, &e) {
			err = models.WrapError(models.ErrKindDiscoveryUnavailable, err, "discovery failed")
		}
		return models.RegistryDiff{}, err
	}
	diff := r.apply(result)
	r.logger.Info().
		Str("provider", r.provider.Name()).
		Int64("revision", r.Current().Revision).
		Int("operations", r.Current().Len()).
		Int("added", len(diff.Added)).
		Int("removed", len(diff.Removed)).
		Int("changed", len(diff.Changed)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("refresh complete")
	return diff, nil
}

// Apply builds a generation from an already obtained discovery result.
func (r *Registry) Apply(result *models.DiscoveryResult) (models.RegistryDiff, error) {
	if result == nil {
		return models.RegistryDiff{}, fmt.Errorf("nil discovery result")
	}
	r.refresh.Lock()
	defer r.refresh.Unlock()
	return r.apply(result), nil
}

// apply must be called with the refresh mutex held.
func (r *Registry) apply(result *models.DiscoveryResult) models.RegistryDiff {
	r.recordAttempt(nil)

	built, failures := schema.Build(result)
	ops, genFailures := generator.Generate(built.Resources(), built.Procedures())
	failures = append(failures, genFailures...)
	for _, f := range failures {
		r.logger.Warn().Str("source", f.Source).Str("kind", string(f.Kind)).Str("message", f.Message).Msg("discovery gap")
	}

	prev := r.current.Load()
	fingerprint := generator.Fingerprint(ops)
	if fingerprint == prev.Fingerprint && prev.Revision > 0 {
		r.logger.Debug().Str("fingerprint", fingerprint).Msg("operation set unchanged")
		// same generation, current failures
		same := *prev
		same.failures = failures
		r.current.Store(&same)
		return models.RegistryDiff{}
	}

	next := &Snapshot{
		Revision:    prev.Revision + 1,
		Version:     built.Version,
		BuiltAt:     built.BuiltAt,
		Provider:    built.Provider,
		Fingerprint: fingerprint,
		ops:         ops,
		index:       make(map[string]int, len(ops)),
		resources:   make(map[string]models.ResourceDescriptor),
		failures:    failures,
	}
	// only types that produced operations are exposed
	targets := make(map[string]bool)
	for i, op := range ops {
		next.index[op.Name] = i
		if op.Kind != models.OpProcedure {
			targets[op.TargetType] = true
		}
	}
	for _, res := range built.Resources() {
		if targets[res.TypeName] {
			next.resources[res.TypeName] = res
		}
	}

	diff := Compare(prev, next)
	r.current.Store(next)
	r.notify(next, diff)
	return diff
}

func (r *Registry) recordAttempt(err error) {
	now := time.Now().UTC()
	r.lastAttempt.Store(&now)
	if err == nil {
		r.lastErr.Store(nil)
		return
	}
	msg := err.Error()
	r.lastErr.Store(&msg)
}

// Compare returns the names added, removed, and changed from prev to next.
func Compare(prev, next *Snapshot) models.RegistryDiff {
	var d models.RegistryDiff
	for _, op := range next.ops {
		i, ok := prev.index[op.Name]
		if !ok {
			d.Added = append(d.Added, op.Name)
			continue
		}
		if generator.Fingerprint([]models.OperationDescriptor{prev.ops[i]}) != generator.Fingerprint([]models.OperationDescriptor{op}) {
			d.Changed = append(d.Changed, op.Name)
		}
	}
	for _, op := range prev.ops {
		if _, ok := next.index[op.Name]; !ok {
			d.Removed = append(d.Removed, op.Name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

// Lookup returns the named operation or fails with NotFound.
func (r *Registry) Lookup(name string) (models.OperationDescriptor, error) {
	snap := r.current.Load()
	i, ok := snap.index[name]
	if !ok {
		return models.OperationDescriptor{}, models.NewError(models.ErrKindNotFound, "unknown operation %q", name)
	}
	return snap.ops[i].Clone(), nil
}

// List returns operations in generation order, optionally filtered by kind
// and target type. Empty filters match everything.
func (r *Registry) List(kind models.OperationKind, target string) []models.OperationDescriptor {
	snap := r.current.Load()
	out := make([]models.OperationDescriptor, 0, len(snap.ops))
	for _, op := range snap.ops {
		if kind != "" && op.Kind != kind {
			continue
		}
		if target != "" && op.TargetType != target {
			continue
		}
		out = append(out, op.Clone())
	}
	return out
}

// Permissions returns the caller's permissions on a resource type.
func (r *Registry) Permissions(typeName string) (models.PermissionSet, bool) {
	res, ok := r.current.Load().resources[typeName]
	if !ok {
		return nil, false
	}
	return append(models.PermissionSet(nil), res.Permissions...), true
}

// Resource returns the descriptor a resource operation was generated from.
func (r *Registry) Resource(typeName string) (models.ResourceDescriptor, bool) {
	res, ok := r.current.Load().resources[typeName]
	if !ok {
		return models.ResourceDescriptor{}, false
	}
	return res.Clone(), true
}

// Status reports the active generation and the outcome of the last attempt.
func (r *Registry) Status() models.RegistryStatus {
	snap := r.current.Load()
	st := models.RegistryStatus{
		Revision:    snap.Revision,
		Version:     snap.Version,
		BuiltAt:     snap.BuiltAt,
		Provider:    snap.Provider,
		Fingerprint: snap.Fingerprint,
		Operations:  len(snap.ops),
		Resources:   len(snap.resources),
		Failures:    snap.Failures(),
	}
	if t := r.lastAttempt.Load(); t != nil {
		st.LastAttempt = *t
	}
	if e := r.lastErr.Load(); e != nil {
		st.LastError = *e
	}
	return st
}

// Subscribe registers fn to run after every swap. Subscribers run on the
// refreshing goroutine and must not call Refresh.
func (r *Registry) Subscribe(fn Subscriber) {
	r.subMu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.subMu.Unlock()
}

func (r *Registry) notify(snap *Snapshot, diff models.RegistryDiff) {
	r.subMu.RLock()
	subs := append([]Subscriber(nil), r.subscribers...)
	r.subMu.RUnlock()
	for _, fn := range subs {
		fn(snap, diff)
	}
}
