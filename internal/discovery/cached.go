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

// Cached wraps another provider, persisting every successful result and
// serving the last persisted one while the inner provider is unavailable.
type Cached struct {
	inner  Provider
	store  interfaces.SnapshotStorage
	logger *common.Logger
}

// NewCached wraps inner with snapshot persistence.
func NewCached(inner Provider, store interfaces.SnapshotStorage, logger *common.Logger) *Cached {
	return &Cached{inner: inner, store: store, logger: logger}
}

// Name identifies the wrapped provider.
func (c *Cached) Name() string {
	return c.inner.Name()
}

func (c *Cached) key() string {
	return "discovery/" + c.inner.Name()
}

// Discover delegates to the inner provider. Only DiscoveryUnavailable falls
// back to the stored snapshot; other errors pass through.
func (c *Cached) Discover(ctx context.Context) (*models.DiscoveryResult, error) {
	result, err := c.inner.Discover(ctx)
	if err == nil {
		if saveErr := c.store.Save(ctx, c.key(), result); saveErr != nil {
			c.logger.Warn().Str("key", c.key()).Str("error", saveErr.Error()).Msg("failed to persist discovery snapshot")
		}
		return result, nil
	}
	if !errors.Is(err, models.ErrDiscoveryUnavailable) {
		return nil, err
	}

	stored, loadErr := c.store.Load(ctx, c.key())
	if loadErr != nil {
		c.logger.Debug().Str("key", c.key()).Str("error", loadErr.Error()).Msg("no stored snapshot to fall back to")
		return nil, err
	}

	age := time.Since(stored.CollectedAt).Round(time.Second)
	c.logger.Warn().
		Str("provider", c.inner.Name()).
		Str("age", age.String()).
		Str("error", err.Error()).
		Msg("discovery unavailable, serving stored snapshot")
	stored.Failures = append(stored.Failures, models.DiscoveryFailure{
		Source:  c.key(),
		Kind:    models.ErrKindDiscoveryUnavailable,
		Message: fmt.Sprintf("serving snapshot collected %s ago: %v", age, err),
	})
	return stored, nil
}
