// Package executor validates arguments, issues the remote call for an
// operation and reports every outcome as a ResultEnvelope.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bobmcallan/toolsmith/internal/cache"
	"github.com/bobmcallan/toolsmith/internal/client"
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/google/uuid"
)

// Lookup resolves operation names. The tool registry implements it.
type Lookup interface {
	Lookup(name string) (models.OperationDescriptor, error)
}

// Observer receives execution outcomes, typically for metrics.
type Observer interface {
	ExecutionFinished(operation string, kind models.OperationKind, outcome string, d time.Duration)
	CacheLookup(hit bool)
}

// Options configures an Executor.
type Options struct {
	// RequireCredentials fails calls locally with Unauthorized when no
	// credentials would be sent.
	RequireCredentials bool
	Cache              *cache.ResponseCache
	Observer           Observer
}

// Executor runs operations. It holds no registry lock, so a slow or canceled
// call never blocks a refresh.
type Executor struct {
	ops      Lookup
	remote   RemoteClient
	opts     Options
	logger   *common.Logger
	observer Observer
}

// New creates an executor.
func New(ops Lookup, remote RemoteClient, opts Options, logger *common.Logger) *Executor {
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Executor{ops: ops, remote: remote, opts: opts, logger: logger, observer: observer}
}

// Cache returns the response cache, or nil.
func (e *Executor) Cache() *cache.ResponseCache {
	return e.opts.Cache
}

// Execute runs the named operation. It never returns an error: every failure
// is reported through the envelope.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) (env models.ResultEnvelope) {
	correlationID := uuid.New().String()
	logger := e.logger.WithCorrelationId(correlationID)
	start := time.Now()
	var kind models.OperationKind

	defer func() {
		env.CorrelationID = correlationID
		outcome := "ok"
		if !env.OK {
			outcome = string(env.ErrorKind)
		}
		e.observer.ExecutionFinished(name, kind, outcome, time.Since(start))
		logger.Info().
			Str("operation", name).
			Bool("ok", env.OK).
			Str("outcome", outcome).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("operation executed")
	}()

	op, err := e.ops.Lookup(name)
	if err != nil {
		return failure(name, false, err)
	}
	kind = op.Kind
	if args == nil {
		args = map[string]interface{}{}
	}

	if violations := Validate(op, args); len(violations) > 0 {
		verr := models.NewError(models.ErrKindValidation, "%d argument violation(s) for %s", len(violations), name)
		verr.Details = violations
		return failure(name, op.Idempotent, verr)
	}

	if e.opts.RequireCredentials && !e.remote.HasCredentials(ctx) {
		return failure(name, op.Idempotent, models.NewError(models.ErrKindUnauthorized, "no remote credentials configured or supplied"))
	}
	if ctx.Err() != nil {
		cerr, _ := Classify(ctx, ctx.Err())
		return failure(name, op.Idempotent, cerr)
	}

	cacheKey := e.cacheKey(ctx, op, args)
	if cacheKey != "" {
		if hit, ok := e.opts.Cache.Get(cacheKey); ok {
			e.observer.CacheLookup(true)
			logger.Debug().Str("operation", name).Msg("served from cache")
			cached := models.Success(name, hit.Body)
			cached.StatusCode = hit.StatusCode
			cached.Idempotent = op.Idempotent
			return cached
		}
		e.observer.CacheLookup(false)
	}

	resp, err := call(ctx, e.remote, op, args)
	if err != nil {
		classified, status := Classify(ctx, err)
		logger.Warn().
			Str("operation", name).
			Str("kind", string(classified.Kind)).
			Int("status", status).
			Str("error", err.Error()).
			Msg("remote call failed")
		failed := failure(name, op.Idempotent, classified)
		failed.StatusCode = status
		return failed
	}

	data := payload(resp.Body)
	switch op.Kind {
	case models.OpCreate, models.OpUpdate, models.OpDelete:
		if e.opts.Cache != nil {
			if n := e.opts.Cache.InvalidateTarget(op.TargetType); n > 0 {
				logger.Debug().Str("type", op.TargetType).Int("entries", n).Msg("cache invalidated")
			}
		}
	default:
		if cacheKey != "" {
			e.opts.Cache.Set(cacheKey, &cache.CachedResponse{StatusCode: resp.StatusCode, Body: data})
		}
	}

	env = models.Success(name, data)
	env.StatusCode = resp.StatusCode
	env.Idempotent = op.Idempotent
	return env
}

// cacheKey returns "" when the call must not be cached.
func (e *Executor) cacheKey(ctx context.Context, op models.OperationDescriptor, args map[string]interface{}) string {
	if e.opts.Cache == nil || (op.Kind != models.OpList && op.Kind != models.OpGet) {
		return ""
	}
	canonical, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	creds, _ := client.CredentialsFrom(ctx)
	return cache.MakeKey(op.TargetType, creds, op.Name, canonical)
}

func failure(name string, idempotent bool, err error) models.ResultEnvelope {
	e, ok := err.(*models.Error)
	if !ok {
		e = models.WrapError(models.ErrKindRemote, err, "%v", err)
	}
	env := models.Failure(name, e)
	env.Idempotent = idempotent
	return env
}

// payload keeps a JSON body unchanged and encodes anything else as a string.
func payload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

type noopObserver struct{}

func (noopObserver) ExecutionFinished(string, models.OperationKind, string, time.Duration) {}
func (noopObserver) CacheLookup(bool)                                                      {}
