package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tomaszkw/docmeter/internal/common"
)

// Discoverer performs the zero-argument lookup that yields the processing
// backend's base URL.
type Discoverer interface {
	Discover(ctx context.Context) (string, error)
}

// Resolver caches the backend base URL for the life of the process.
// Discovery is single-flight: concurrent cold-cache callers share one
// lookup instead of each issuing their own.
type Resolver struct {
	disc   Discoverer
	logger *slog.Logger

	group singleflight.Group

	mu   sync.RWMutex
	base string
}

func NewResolver(disc Discoverer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{disc: disc, logger: logger}
}

// Resolve returns the cached base URL, performing discovery on a cold cache.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.RLock()
	base := r.base
	r.mu.RUnlock()
	if base != "" {
		return base, nil
	}

	v, err, _ := r.group.Do("discover", func() (any, error) {
		// A previous flight may have populated the cache while we queued.
		r.mu.RLock()
		cached := r.base
		r.mu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		discovered, err := r.disc.Discover(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrConfigUnavailable, err)
		}
		r.mu.Lock()
		r.base = discovered
		r.mu.Unlock()
		r.logger.Info("backend endpoint resolved", "base_url", discovered)
		return discovered, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached base URL so the next Resolve performs a
// fresh discovery call.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.base = ""
	r.mu.Unlock()
	r.logger.Info("backend endpoint cache invalidated")
}

// WithRetry resolves the base URL and runs action against it. A
// transport-classified failure invalidates the cache and retries
// resolve+action exactly once; any further failure propagates.
func (r *Resolver) WithRetry(ctx context.Context, action func(ctx context.Context, base string) error) error {
	base, err := r.Resolve(ctx)
	if err != nil {
		return err
	}

	err = action(ctx, base)
	if err == nil || !IsTransportErr(err) {
		return err
	}

	r.logger.Warn("backend call failed, invalidating endpoint and retrying", "error", err)
	r.Invalidate()

	base, rerr := r.Resolve(ctx)
	if rerr != nil {
		return rerr
	}
	return action(ctx, base)
}

// IsTransportErr reports whether err is a transport-level failure, as
// opposed to an application-level rejection from the backend.
func IsTransportErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrNetwork) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
