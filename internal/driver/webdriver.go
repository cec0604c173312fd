package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/by"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

func (s *Session) callString(name string, params map[string]interface{}) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		v, err := s.execute(ctx, name, params)
		return asString(v), err
	}
}

func (s *Session) callVoid(name string, params map[string]interface{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.execute(ctx, name, params)
		return err
	}
}

func identity(s string) string { return s }

// Get loads url in the current window.
func (s *Session) Get(ctx context.Context, url string) error {
	return instrumentVoid(ctx, s, events.DriverGet, events.Params{Param1: url},
		s.callVoid(transport.Get, map[string]interface{}{"url": url}))
}

// CurrentURL returns the URL of the current page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return instrument(ctx, s, events.DriverGetCurrentURL, events.Params{}, s.callString(transport.GetCurrentURL, nil), identity)
}

// Title returns the title of the current page.
func (s *Session) Title(ctx context.Context) (string, error) {
	return instrument(ctx, s, events.DriverGetTitle, events.Params{}, s.callString(transport.GetTitle, nil), identity)
}

// PageSource returns the serialized DOM. The record summary only carries
// its length.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	return instrument(ctx, s, events.DriverGetPageSource, events.Params{}, s.callString(transport.GetPageSource, nil),
		func(src string) string { return fmt.Sprintf("%d characters", len(src)) })
}

// FindElement returns the first element matching loc.
func (s *Session) FindElement(ctx context.Context, loc by.Locator) (*Element, error) {
	return instrument(ctx, s, events.DriverFindElement, events.Params{Param1: loc.String()},
		func(ctx context.Context) (*Element, error) { return s.findOne(ctx, nil, s, loc) }, elementSummary)
}

// FindElements never fails with not-found; it returns an empty slice.
func (s *Session) FindElements(ctx context.Context, loc by.Locator) ([]*Element, error) {
	return instrument(ctx, s, events.DriverFindElements, events.Params{Param1: loc.String()},
		func(ctx context.Context) ([]*Element, error) { return s.findAll(ctx, nil, s, loc) }, elementsSummary)
}

// ExecuteScript runs script in the page with args, which may include
// elements. Scripts starting with UninstrumentedScriptPrefix are sent
// without producing records.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	return s.script(ctx, events.DriverExecuteScript, transport.ExecuteScript, script, args)
}

// ExecuteAsyncScript runs script and waits for it to invoke its callback.
func (s *Session) ExecuteAsyncScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	return s.script(ctx, events.DriverExecuteAsyncScript, transport.ExecuteAsyncScript, script, args)
}

func (s *Session) script(ctx context.Context, cmd events.Command, name, script string, args []interface{}) (interface{}, error) {
	if raw, ok := strings.CutPrefix(script, UninstrumentedScriptPrefix); ok {
		v, err := s.executeRaw(ctx, name, map[string]interface{}{"script": raw, "args": wireArgs(args)})
		if err != nil {
			return nil, err
		}
		return s.fromWire(v), nil
	}
	params := map[string]interface{}{"script": script, "args": wireArgs(args)}
	p := events.Params{Param1: script}
	if len(args) > 0 {
		p.Param2 = fmt.Sprint(args...)
	}
	return instrument(ctx, s, cmd, p, func(ctx context.Context) (interface{}, error) {
		v, err := s.execute(ctx, name, params)
		if err != nil {
			return nil, err
		}
		return s.fromWire(v), nil
	}, func(v interface{}) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// Close closes the current window.
func (s *Session) Close(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.DriverClose, events.Params{}, s.callVoid(transport.Close, nil))
}

// Quit ends the session and closes every window.
func (s *Session) Quit(ctx context.Context) error {
	err := instrumentVoid(ctx, s, events.DriverQuit, events.Params{}, s.callVoid(transport.Quit, nil))
	if err == nil {
		s.log.Infof("Session ended")
	}
	return err
}

// WindowHandle returns the handle of the current window.
func (s *Session) WindowHandle(ctx context.Context) (string, error) {
	return instrument(ctx, s, events.DriverGetWindowHandle, events.Params{}, s.callString(transport.GetWindowHandle, nil), identity)
}

// WindowHandles returns the handles of every open window.
func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	return instrument(ctx, s, events.DriverGetWindowHandles, events.Params{},
		func(ctx context.Context) ([]string, error) {
			v, err := s.execute(ctx, transport.GetWindowHandles, nil)
			return decodeStrings(v), err
		}, func(hs []string) string { return strings.Join(hs, ", ") })
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return instrument(ctx, s, events.DriverGetScreenshotAs, events.Params{Param1: "BYTES"},
		func(ctx context.Context) ([]byte, error) {
			v, err := s.execute(ctx, transport.Screenshot, nil)
			if err != nil {
				return nil, err
			}
			return decodePNG(v)
		}, func(png []byte) string { return fmt.Sprintf("%d bytes", len(png)) })
}

// Back navigates one step back in history.
func (s *Session) Back(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.NavigationBack, events.Params{}, s.callVoid(transport.Back, nil))
}

// Forward navigates one step forward in history.
func (s *Session) Forward(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.NavigationForward, events.Params{}, s.callVoid(transport.Forward, nil))
}

// Refresh reloads the current page.
func (s *Session) Refresh(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.NavigationRefresh, events.Params{}, s.callVoid(transport.Refresh, nil))
}

// SwitchToWindow focuses the window with handle.
func (s *Session) SwitchToWindow(ctx context.Context, handle string) error {
	return instrumentVoid(ctx, s, events.SwitchToWindow, events.Params{Param1: handle},
		s.callVoid(transport.SwitchToWindow, map[string]interface{}{"handle": handle}))
}

// SwitchToFrame focuses a frame given by index, name or id, or element.
func (s *Session) SwitchToFrame(ctx context.Context, frame interface{}) error {
	return instrumentVoid(ctx, s, events.SwitchToFrame, events.Params{Param1: fmt.Sprint(frame)},
		s.callVoid(transport.SwitchToFrame, map[string]interface{}{"id": wireValue(frame)}))
}

// SwitchToParentFrame focuses the parent of the current frame.
func (s *Session) SwitchToParentFrame(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.SwitchToParentFrame, events.Params{}, s.callVoid(transport.SwitchToParentFrame, nil))
}

// SwitchToDefaultContent focuses the top-level document.
func (s *Session) SwitchToDefaultContent(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.SwitchToDefaultContent, events.Params{},
		s.callVoid(transport.SwitchToFrame, map[string]interface{}{"id": nil}))
}

// ActiveElement returns the element that has focus.
func (s *Session) ActiveElement(ctx context.Context) (*Element, error) {
	return instrument(ctx, s, events.SwitchToActiveElement, events.Params{},
		func(ctx context.Context) (*Element, error) {
			v, err := s.execute(ctx, transport.GetActiveElement, nil)
			if err != nil {
				return nil, err
			}
			id, _ := elementID(v)
			return s.newElement(id, s, "By.activeElement()"), nil
		}, elementSummary)
}

// AddCookie sets a cookie on the current domain.
func (s *Session) AddCookie(ctx context.Context, c Cookie) error {
	return instrumentVoid(ctx, s, events.OptionsAddCookie, events.Params{Param1: c.Name},
		s.callVoid(transport.AddCookie, map[string]interface{}{"cookie": c.wire()}))
}

// Cookies returns every cookie visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]Cookie, error) {
	return instrument(ctx, s, events.OptionsGetCookies, events.Params{},
		func(ctx context.Context) ([]Cookie, error) {
			v, err := s.execute(ctx, transport.GetAllCookies, nil)
			return decodeCookies(v), err
		}, func(cs []Cookie) string { return fmt.Sprintf("%d cookies", len(cs)) })
}

// DeleteCookieNamed removes one cookie.
func (s *Session) DeleteCookieNamed(ctx context.Context, name string) error {
	return instrumentVoid(ctx, s, events.OptionsDeleteCookieNamed, events.Params{Param1: name},
		s.callVoid(transport.DeleteCookie, map[string]interface{}{"name": name}))
}

// DeleteAllCookies removes every cookie of the current domain.
func (s *Session) DeleteAllCookies(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.OptionsDeleteAllCookies, events.Params{}, s.callVoid(transport.DeleteAllCookies, nil))
}

// AcceptAlert accepts the open dialog.
func (s *Session) AcceptAlert(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.AlertAccept, events.Params{}, s.callVoid(transport.AcceptAlert, nil))
}

// DismissAlert dismisses the open dialog.
func (s *Session) DismissAlert(ctx context.Context) error {
	return instrumentVoid(ctx, s, events.AlertDismiss, events.Params{}, s.callVoid(transport.DismissAlert, nil))
}

// AlertText returns the message of the open dialog.
func (s *Session) AlertText(ctx context.Context) (string, error) {
	return instrument(ctx, s, events.AlertGetText, events.Params{}, s.callString(transport.GetAlertText, nil), identity)
}

// SendKeysToAlert types into a prompt dialog.
func (s *Session) SendKeysToAlert(ctx context.Context, text string) error {
	return instrumentVoid(ctx, s, events.AlertSendKeys, events.Params{Param1: text},
		s.callVoid(transport.SetAlertValue, map[string]interface{}{"text": text}))
}
