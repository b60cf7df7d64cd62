// Package cache memoizes generated reports per (address, year).
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// DefaultTTL is how long a report stays servable.
const DefaultTTL = time.Hour

// DefaultComputeTimeout caps a shared computation started by a caller without a deadline.
const DefaultComputeTimeout = 2 * time.Minute

// Key identifies a cached report.
type Key struct {
	Address string
	Year    int
}

func (k Key) String() string {
	return fmt.Sprintf("wrapped:%s:%d", strings.ToLower(k.Address), k.Year)
}

// ComputeFunc produces a fresh aggregate on a miss.
type ComputeFunc func(ctx context.Context) (model.WrappedAggregate, error)

// Cache serves an entry verbatim while now - WrittenAt < ttl.
// Concurrent misses for the same key share one computation.
type Cache struct {
	store          Store
	ttl            time.Duration
	computeTimeout time.Duration
	now            func() time.Time
	group          singleflight.Group
}

// New creates a Cache over store; a non-positive ttl selects DefaultTTL.
func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, computeTimeout: DefaultComputeTimeout, now: time.Now}
}

// WithComputeTimeout sets the cap applied to a shared computation when its caller has no deadline.
func (c *Cache) WithComputeTimeout(d time.Duration) *Cache {
	if d > 0 {
		c.computeTimeout = d
	}
	return c
}

// WithClock replaces the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh entry for key, if any. Store errors count as a miss.
func (c *Cache) Get(ctx context.Context, key Key) (model.WrappedAggregate, bool) {
	entry, ok, err := c.store.Get(ctx, key.String())
	if err != nil {
		logrus.WithError(err).WithField("key", key.String()).Warn("Cache read failed")
		return model.WrappedAggregate{}, false
	}
	if !ok || c.now().Sub(entry.WrittenAt) >= c.ttl {
		return model.WrappedAggregate{}, false
	}
	return entry.Value, true
}

// Put stores value under key, stamped with the current time.
func (c *Cache) Put(ctx context.Context, key Key, value model.WrappedAggregate) error {
	return c.store.Set(ctx, key.String(), Entry{Value: value, WrittenAt: c.now()}, c.ttl)
}

// GetOrCompute returns the cached value for key or computes, stores and returns a new one.
// hit reports whether the value came from the cache. Errors are never cached.
// The shared computation outlives the cancellation of any single caller; a caller whose
// ctx ends stops waiting and gets ctx.Err().
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (value model.WrappedAggregate, hit bool, err error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		shared, cancel := c.detach(ctx)
		defer cancel()

		// another caller may have filled the entry while this one waited
		if v, ok := c.Get(shared, key); ok {
			return v, nil
		}
		v, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if err := c.Put(shared, key, v); err != nil {
			logrus.WithError(err).WithField("key", key.String()).Warn("Cache write failed")
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return model.WrappedAggregate{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.WrappedAggregate{}, false, res.Err
		}
		return res.Val.(model.WrappedAggregate), false, nil
	}
}

// detach drops ctx's cancellation but keeps its deadline, or applies the compute timeout.
func (c *Cache) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithTimeout(detached, c.computeTimeout)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
