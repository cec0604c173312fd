package driver

import (
	"context"
	"fmt"

	"github.com/gxo-labs/seltrace/internal/locate"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/by"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

// UninstrumentedScriptPrefix marks scripts that bypass the dispatcher. The
// prefix is stripped before the script is sent.
const UninstrumentedScriptPrefix = "seltrace:"

const highlightScript = `arguments[0].style.outline = '2px solid red';`

// SearchContext is something elements can be looked up in: a session or
// an element.
type SearchContext interface {
	FindElement(ctx context.Context, loc by.Locator) (*Element, error)
	FindElements(ctx context.Context, loc by.Locator) ([]*Element, error)
}

// Scope evaluates browser-native locators within a search context without
// producing records. Local locators build on it.
type Scope interface {
	FindElements(ctx context.Context, loc by.Locator) ([]*Element, error)
}

// LocalLocator is a custom locator evaluated client-side.
type LocalLocator interface {
	by.Locator
	FindElements(ctx context.Context, scope Scope) ([]*Element, error)
}

// remoteFinder asks the browser to evaluate a locator.
type remoteFinder struct {
	s      *Session
	parent *Element
	sc     SearchContext
}

func (f remoteFinder) command(single bool, loc by.Locator) (string, map[string]interface{}, error) {
	rl, ok := loc.(by.RemoteLocator)
	if !ok {
		return "", nil, seltraceerrors.NewInvalidArgumentError(fmt.Sprintf("invalid argument: %s has no browser-native strategy", loc), nil)
	}
	using, value := rl.RemoteParameters()
	if using == "" {
		return "", nil, seltraceerrors.NewInvalidArgumentError(fmt.Sprintf("invalid argument: %s has no browser-native strategy", loc), nil)
	}
	params := map[string]interface{}{"using": using, "value": value}
	switch {
	case f.parent == nil && single:
		return transport.FindElement, params, nil
	case f.parent == nil:
		return transport.FindElements, params, nil
	case single:
		params["id"] = f.parent.id
		return transport.FindChildElement, params, nil
	default:
		params["id"] = f.parent.id
		return transport.FindChildElements, params, nil
	}
}

func (f remoteFinder) FindElement(ctx context.Context, loc by.Locator) (*Element, error) {
	name, params, err := f.command(true, loc)
	if err != nil {
		return nil, err
	}
	v, err := f.s.executeRaw(ctx, name, params)
	if err != nil {
		return nil, err
	}
	id, ok := elementID(v)
	if !ok {
		return nil, seltraceerrors.NewDriverError(seltraceerrors.CodeUnknownError, fmt.Sprintf("malformed element reference for %s", loc), nil)
	}
	return f.s.newElement(id, f.sc, loc.String()), nil
}

func (f remoteFinder) FindElements(ctx context.Context, loc by.Locator) ([]*Element, error) {
	name, params, err := f.command(false, loc)
	if err != nil {
		return nil, err
	}
	v, err := f.s.executeRaw(ctx, name, params)
	if err != nil {
		return nil, err
	}
	list, _ := v.([]interface{})
	out := make([]*Element, 0, len(list))
	for _, item := range list {
		if id, ok := elementID(item); ok {
			out = append(out, f.s.newElement(id, f.sc, loc.String()))
		}
	}
	return out, nil
}

// localFinder evaluates a locator client-side, either through its own
// logic or by translating it into a browser-native locator.
type localFinder struct {
	remote remoteFinder
}

func (f localFinder) FindElement(ctx context.Context, loc by.Locator) (*Element, error) {
	els, err := f.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, seltraceerrors.NewNoSuchElementError(fmt.Sprintf("no such element: Unable to locate element: %s", loc), nil)
	}
	return els[0], nil
}

func (f localFinder) FindElements(ctx context.Context, loc by.Locator) ([]*Element, error) {
	var (
		els []*Element
		err error
	)
	switch l := loc.(type) {
	case LocalLocator:
		els, err = l.FindElements(ctx, f.remote)
	case by.Translator:
		translated, ok := l.Translate()
		if !ok {
			return nil, seltraceerrors.NewInvalidArgumentError(fmt.Sprintf("invalid argument: cannot evaluate %s locally", loc), nil)
		}
		els, err = f.remote.FindElements(ctx, translated)
	default:
		return nil, seltraceerrors.NewInvalidArgumentError(fmt.Sprintf("invalid argument: cannot evaluate %s locally", loc), nil)
	}
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		el.description = loc.String()
	}
	return els, nil
}

func (s *Session) finders(parent *Element, sc SearchContext) (remoteFinder, localFinder) {
	remote := remoteFinder{s: s, parent: parent, sc: sc}
	return remote, localFinder{remote: remote}
}

func (s *Session) findOne(ctx context.Context, parent *Element, sc SearchContext, loc by.Locator) (*Element, error) {
	remote, local := s.finders(parent, sc)
	el, err := locate.FindElement[*Element](ctx, s.resolver, remote, local, loc)
	if err != nil {
		return nil, err
	}
	s.highlightElement(ctx, el)
	return el, nil
}

func (s *Session) findAll(ctx context.Context, parent *Element, sc SearchContext, loc by.Locator) ([]*Element, error) {
	remote, local := s.finders(parent, sc)
	els, err := locate.FindElements[*Element](ctx, s.resolver, remote, local, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		s.highlightElement(ctx, el)
	}
	return els, nil
}

// highlightElement outlines el when highlighting is on. Failures are only
// logged; highlighting never affects the outcome of a lookup.
func (s *Session) highlightElement(ctx context.Context, el *Element) {
	if !s.highlight || !s.caps.JavascriptEnabled {
		return
	}
	if _, err := s.ExecuteScript(ctx, UninstrumentedScriptPrefix+highlightScript, el); err != nil {
		s.log.Debugf("Failed to highlight %s: %v", el, err)
	}
}

func (s *Session) newElement(id string, parent SearchContext, description string) *Element {
	return &Element{
		id:          id,
		session:     s,
		parent:      parent,
		description: description,
		uploader:    s.uploader,
	}
}

func elementSummary(el *Element) string {
	if el == nil {
		return ""
	}
	return el.String()
}

func elementsSummary(els []*Element) string {
	switch len(els) {
	case 0:
		return ""
	case 1:
		return els[0].String()
	}
	return fmt.Sprintf("%s and %d more", els[0], len(els)-1)
}
