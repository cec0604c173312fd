package locate_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/gxo-labs/seltrace/internal/locate"
	"github.com/gxo-labs/seltrace/internal/logger"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/by"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFinder returns canned results and counts calls.
type stubFinder struct {
	one      string
	many     []string
	err      error
	oneCalls int
	allCalls int
}

func (f *stubFinder) FindElement(context.Context, by.Locator) (string, error) {
	f.oneCalls++
	return f.one, f.err
}

func (f *stubFinder) FindElements(context.Context, by.Locator) ([]string, error) {
	f.allCalls++
	return f.many, f.err
}

// localOnly is a custom locator kind without remote parameters.
type localOnly struct{}

func (localOnly) Kind() by.Kind  { return "label" }
func (localOnly) String() string { return `By.label("Name")` }

func notFound() error { return seltraceerrors.NewNoSuchElementError("no such element", nil) }

func invalidArg() error { return seltraceerrors.NewInvalidArgumentError("unsupported locator", nil) }

func newResolver() *locate.Resolver {
	return locate.NewResolver(logger.NewLogger("error", "text", io.Discard))
}

func TestPreseededKindsAreRemote(t *testing.T) {
	r := newResolver()
	for _, k := range []by.Kind{by.KindCSSSelector, by.KindLinkText, by.KindPartialLinkText, by.KindTagName, by.KindXPath} {
		m, ok := r.Cached(k)
		require.True(t, ok, k)
		assert.Equal(t, locate.Remote, m, k)
	}
	_, ok := r.Cached(by.KindID)
	assert.False(t, ok)
}

func TestCSSOnEmptyPageIsNotFoundAndCachesRemote(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{err: notFound()}
	local := &stubFinder{one: "local"}

	_, err := locate.FindElement[string](context.Background(), r, remote, local, by.CSSSelector("#missing"))
	assert.True(t, seltraceerrors.IsNotFound(err))
	m, _ := r.Cached(by.KindCSSSelector)
	assert.Equal(t, locate.Remote, m)
	assert.Zero(t, local.oneCalls)
}

func TestRemoteSuccessFixesMechanism(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{one: "remote-el"}
	local := &stubFinder{one: "local-el"}
	ctx := context.Background()

	el, err := locate.FindElement[string](ctx, r, remote, local, by.ID("login"))
	require.NoError(t, err)
	assert.Equal(t, "remote-el", el)
	m, ok := r.Cached(by.KindID)
	require.True(t, ok)
	assert.Equal(t, locate.Remote, m)

	_, err = locate.FindElement[string](ctx, r, remote, local, by.ID("other"))
	require.NoError(t, err)
	assert.Equal(t, 2, remote.oneCalls)
	assert.Zero(t, local.oneCalls, "the alternate mechanism is never probed for a cached kind")
}

func TestRemoteNotFoundCachesRemoteForUnseededKind(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{err: notFound()}
	local := &stubFinder{one: "local-el"}

	_, err := locate.FindElement[string](context.Background(), r, remote, local, by.Name("q"))
	assert.True(t, seltraceerrors.IsNotFound(err))
	m, _ := r.Cached(by.KindName)
	assert.Equal(t, locate.Remote, m)
	assert.Zero(t, local.oneCalls)
}

func TestInvalidArgumentFallsBackToLocal(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{err: invalidArg()}
	local := &stubFinder{one: "local-el"}
	ctx := context.Background()

	el, err := locate.FindElement[string](ctx, r, remote, local, by.ClassName("btn"))
	require.NoError(t, err)
	assert.Equal(t, "local-el", el)
	m, _ := r.Cached(by.KindClassName)
	assert.Equal(t, locate.Local, m)

	remote.err = nil
	_, err = locate.FindElement[string](ctx, r, remote, local, by.ClassName("btn"))
	require.NoError(t, err)
	assert.Equal(t, 1, remote.oneCalls, "a kind cached as local is not re-probed remotely")
	assert.Equal(t, 2, local.oneCalls)
}

func TestLocalNotFoundCachesLocal(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{}
	local := &stubFinder{err: notFound()}

	_, err := locate.FindElement[string](context.Background(), r, remote, local, localOnly{})
	assert.True(t, seltraceerrors.IsNotFound(err))
	m, ok := r.Cached("label")
	require.True(t, ok)
	assert.Equal(t, locate.Local, m)
	assert.Zero(t, remote.oneCalls, "locators without remote support skip the remote mechanism")
}

func TestOtherErrorsAreNotCached(t *testing.T) {
	r := newResolver()
	boom := errors.New("connection reset")
	remote := &stubFinder{err: boom}
	local := &stubFinder{one: "local-el"}

	_, err := locate.FindElement[string](context.Background(), r, remote, local, by.ID("x"))
	assert.ErrorIs(t, err, boom)
	_, ok := r.Cached(by.KindID)
	assert.False(t, ok)
	assert.Zero(t, local.oneCalls)

	local.err = boom
	_, err = locate.FindElement[string](context.Background(), r, remote, local, localOnly{})
	assert.ErrorIs(t, err, boom)
	_, ok = r.Cached("label")
	assert.False(t, ok)
}

func TestFindElementsNeverRaisesNotFound(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{err: notFound()}
	local := &stubFinder{}

	els, err := locate.FindElements[string](context.Background(), r, remote, local, by.XPath("//nothing"))
	require.NoError(t, err)
	assert.NotNil(t, els)
	assert.Empty(t, els)

	local.err = notFound()
	els, err = locate.FindElements[string](context.Background(), r, remote, local, localOnly{})
	require.NoError(t, err)
	assert.Empty(t, els)
	m, _ := r.Cached("label")
	assert.Equal(t, locate.Local, m)
}

func TestFindElementsFallbackAndCache(t *testing.T) {
	r := newResolver()
	remote := &stubFinder{err: invalidArg()}
	local := &stubFinder{many: []string{"a", "b"}}
	ctx := context.Background()

	els, err := locate.FindElements[string](ctx, r, remote, local, by.ID("item"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, els)

	_, err = locate.FindElements[string](ctx, r, remote, local, by.ID("item"))
	require.NoError(t, err)
	assert.Equal(t, 1, remote.allCalls)
	assert.Equal(t, 2, local.allCalls)
}
