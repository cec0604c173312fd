package driver

import (
	"context"
	"fmt"

	seltrace "github.com/gxo-labs/seltrace/pkg/seltrace/v1"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/by"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

// Element is a reference to a DOM element, enriched with where it was found.
type Element struct {
	id          string
	session     *Session
	parent      SearchContext
	description string
	uploader    seltrace.FileUploader
}

var _ SearchContext = (*Element)(nil)

// ID returns the remote element reference.
func (e *Element) ID() string { return e.id }

// Session returns the session owning e.
func (e *Element) Session() *Session { return e.session }

// Parent returns the session or element e was looked up in.
func (e *Element) Parent() SearchContext { return e.parent }

// Locator returns the description of the locator that found e, such as
// By.id("login").
func (e *Element) Locator() string { return e.description }

// String returns the locator description the element was found with.
func (e *Element) String() string { return e.description }

func (e *Element) params() map[string]interface{} {
	return map[string]interface{}{"id": e.id}
}

func (e *Element) with(k string, v interface{}) map[string]interface{} {
	p := e.params()
	p[k] = v
	return p
}

// Click clicks the element.
func (e *Element) Click(ctx context.Context) error {
	s := e.session
	return instrumentVoid(ctx, s, events.ElementClick, events.Params{Locator: e.description},
		s.callVoid(transport.ClickElement, e.params()))
}

// Submit submits the form containing the element.
func (e *Element) Submit(ctx context.Context) error {
	s := e.session
	return instrumentVoid(ctx, s, events.ElementSubmit, events.Params{Locator: e.description},
		s.callVoid(transport.SubmitElement, e.params()))
}

// Clear empties a text input.
func (e *Element) Clear(ctx context.Context) error {
	s := e.session
	return instrumentVoid(ctx, s, events.ElementClear, events.Params{Locator: e.description},
		s.callVoid(transport.ClearElement, e.params()))
}

// SendKeys types text into e. Text typed into a password field is masked
// in the record and tracked as a secret. When a file uploader recognizes
// text as a local file, the file is uploaded first and its remote path is
// typed instead.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	s := e.session
	recorded := text
	if isPasswordLocator(e.description) {
		recorded = events.PasswordMask
		s.secrets.Add(text)
		s.metrics.SecretsRedacted.Inc()
	}
	return instrumentVoid(ctx, s, events.ElementSendKeys, events.Params{Locator: e.description, Param1: recorded},
		func(ctx context.Context) error {
			keys := text
			if e.uploader != nil {
				if path, ok := e.uploader.LocalFile(text); ok {
					v, err := s.execute(ctx, transport.UploadFile, map[string]interface{}{"file": path})
					if err != nil {
						return err
					}
					keys = asString(v)
				}
			}
			_, err := s.execute(ctx, transport.SendKeysToElement, e.with("text", keys))
			return err
		})
}

// Attribute returns the named attribute, or "" when absent.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	s := e.session
	return instrument(ctx, s, events.ElementGetAttribute, events.Params{Locator: e.description, Param1: name},
		s.callString(transport.GetElementAttribute, e.with("name", name)), identity)
}

// Text returns the rendered text of the element.
func (e *Element) Text(ctx context.Context) (string, error) {
	s := e.session
	return instrument(ctx, s, events.ElementGetText, events.Params{Locator: e.description},
		s.callString(transport.GetElementText, e.params()), identity)
}

// TagName returns the lower-case tag name.
func (e *Element) TagName(ctx context.Context) (string, error) {
	s := e.session
	return instrument(ctx, s, events.ElementGetTagName, events.Params{Locator: e.description},
		s.callString(transport.GetElementTagName, e.params()), identity)
}

// IsDisplayed reports whether the element is visible.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	return e.flag(ctx, events.ElementIsDisplayed, transport.IsElementDisplayed)
}

// IsEnabled reports whether the element accepts input.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	return e.flag(ctx, events.ElementIsEnabled, transport.IsElementEnabled)
}

// IsSelected reports whether a checkbox, radio or option is selected.
func (e *Element) IsSelected(ctx context.Context) (bool, error) {
	return e.flag(ctx, events.ElementIsSelected, transport.IsElementSelected)
}

func (e *Element) flag(ctx context.Context, cmd events.Command, name string) (bool, error) {
	s := e.session
	return instrument(ctx, s, cmd, events.Params{Locator: e.description},
		func(ctx context.Context) (bool, error) {
			v, err := s.execute(ctx, name, e.params())
			return asBool(v), err
		}, func(b bool) string { return fmt.Sprint(b) })
}

// CSSValue returns the computed value of a CSS property.
func (e *Element) CSSValue(ctx context.Context, property string) (string, error) {
	s := e.session
	return instrument(ctx, s, events.ElementGetCSSValue, events.Params{Locator: e.description, Param1: property},
		s.callString(transport.GetElementValueOfCSS, e.with("propertyName", property)), identity)
}

// Rect returns the element position and size.
func (e *Element) Rect(ctx context.Context) (Rect, error) {
	s := e.session
	return instrument(ctx, s, events.ElementGetRect, events.Params{Locator: e.description},
		func(ctx context.Context) (Rect, error) {
			v, err := s.execute(ctx, transport.GetElementRect, e.params())
			return decodeRect(v), err
		}, Rect.String)
}

// Screenshot captures e as PNG.
func (e *Element) Screenshot(ctx context.Context) ([]byte, error) {
	s := e.session
	return instrument(ctx, s, events.ElementGetScreenshotAs, events.Params{Locator: e.description, Param1: "BYTES"},
		func(ctx context.Context) ([]byte, error) {
			v, err := s.execute(ctx, transport.ElementScreenshot, e.params())
			if err != nil {
				return nil, err
			}
			return decodePNG(v)
		}, func(png []byte) string { return fmt.Sprintf("%d bytes", len(png)) })
}

// FindElement looks up a descendant of e.
func (e *Element) FindElement(ctx context.Context, loc by.Locator) (*Element, error) {
	s := e.session
	return instrument(ctx, s, events.ElementFindElement, events.Params{Locator: e.description, Param1: loc.String()},
		func(ctx context.Context) (*Element, error) { return s.findOne(ctx, e, e, loc) }, elementSummary)
}

// FindElements looks up descendants of e, returning an empty slice when
// nothing matches.
func (e *Element) FindElements(ctx context.Context, loc by.Locator) ([]*Element, error) {
	s := e.session
	return instrument(ctx, s, events.ElementFindElements, events.Params{Locator: e.description, Param1: loc.String()},
		func(ctx context.Context) ([]*Element, error) { return s.findAll(ctx, e, e, loc) }, elementsSummary)
}
