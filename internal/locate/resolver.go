// Package locate chooses between remote and local element lookup and
// memoizes the mechanism that works for each locator kind.
package locate

import (
	"context"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/by"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
)

// Mechanism is a way of resolving a locator.
type Mechanism int

const (
	// Remote asks the browser to evaluate the locator.
	Remote Mechanism = iota + 1
	// Local evaluates the locator client-side against the search context.
	Local
)

func (m Mechanism) String() string {
	switch m {
	case Remote:
		return "remote"
	case Local:
		return "local"
	}
	return "unknown"
}

// Finder performs lookups with one mechanism against one search context.
type Finder[T any] interface {
	FindElement(ctx context.Context, loc by.Locator) (T, error)
	FindElements(ctx context.Context, loc by.Locator) ([]T, error)
}

// Resolver holds the strategy cache of one session. Entries are never
// removed and a cached kind is never re-probed. A Resolver is not safe for
// concurrent use.
type Resolver struct {
	cache map[by.Kind]Mechanism
	log   seltracelog.Logger
}

// NewResolver returns a resolver with the standard remote kinds pre-seeded.
func NewResolver(log seltracelog.Logger) *Resolver {
	r := &Resolver{
		cache: make(map[by.Kind]Mechanism),
		log:   log.With("component", "LocatorResolver"),
	}
	for _, k := range by.Preseeded() {
		r.cache[k] = Remote
	}
	return r
}

// Cached returns the memoized mechanism for kind.
func (r *Resolver) Cached(kind by.Kind) (Mechanism, bool) {
	m, ok := r.cache[kind]
	return m, ok
}

func (r *Resolver) remember(kind by.Kind, m Mechanism) {
	if prev, ok := r.cache[kind]; !ok || prev != m {
		r.log.Debugf("Caching %s lookup for locator kind '%s'", m, kind)
	}
	r.cache[kind] = m
}

func remoteCapable(loc by.Locator) bool {
	rl, ok := loc.(by.RemoteLocator)
	if !ok {
		return false
	}
	using, _ := rl.RemoteParameters()
	return using != ""
}

// FindElement resolves a single element. A not-found outcome is returned
// as a NoSuchElementError.
func FindElement[T any](ctx context.Context, r *Resolver, remote, local Finder[T], loc by.Locator) (T, error) {
	kind := loc.Kind()
	if m, ok := r.cache[kind]; ok {
		if m == Remote {
			return remote.FindElement(ctx, loc)
		}
		return local.FindElement(ctx, loc)
	}

	if remoteCapable(loc) {
		el, err := remote.FindElement(ctx, loc)
		switch {
		case err == nil || seltraceerrors.IsNotFound(err):
			r.remember(kind, Remote)
			return el, err
		case !seltraceerrors.IsInvalidArgument(err):
			return el, err
		}
		r.log.Debugf("Remote lookup rejected %s, falling back to local", loc)
	}

	el, err := local.FindElement(ctx, loc)
	if err == nil || seltraceerrors.IsNotFound(err) {
		r.remember(kind, Local)
	}
	return el, err
}

// FindElements resolves every matching element. Not-found is not an error
// here: an empty slice is returned instead.
func FindElements[T any](ctx context.Context, r *Resolver, remote, local Finder[T], loc by.Locator) ([]T, error) {
	kind := loc.Kind()
	if m, ok := r.cache[kind]; ok {
		if m == Remote {
			return emptyOnNotFound(remote.FindElements(ctx, loc))
		}
		return emptyOnNotFound(local.FindElements(ctx, loc))
	}

	if remoteCapable(loc) {
		els, err := remote.FindElements(ctx, loc)
		switch {
		case err == nil || seltraceerrors.IsNotFound(err):
			r.remember(kind, Remote)
			return emptyOnNotFound(els, err)
		case !seltraceerrors.IsInvalidArgument(err):
			return els, err
		}
		r.log.Debugf("Remote lookup rejected %s, falling back to local", loc)
	}

	els, err := emptyOnNotFound(local.FindElements(ctx, loc))
	if err == nil {
		r.remember(kind, Local)
	}
	return els, err
}

func emptyOnNotFound[T any](els []T, err error) ([]T, error) {
	if seltraceerrors.IsNotFound(err) {
		return []T{}, nil
	}
	if err == nil && els == nil {
		els = []T{}
	}
	return els, err
}
