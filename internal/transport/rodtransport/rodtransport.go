// Package rodtransport carries wire commands to Chromium through the
// DevTools protocol using go-rod.
package rodtransport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
	"github.com/gxo-labs/seltrace/internal/retry"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

// Options configure how the browser is reached.
type Options struct {
	// ControlURL attaches to a running browser. When empty a browser is
	// launched with BinPath, or a downloaded Chromium when BinPath is empty.
	ControlURL string
	BinPath    string
	Headless   bool
	// Stealth creates pages with go-rod/stealth evasions applied.
	Stealth bool
	// CommandTimeout bounds every command. Zero leaves the caller's
	// context in charge.
	CommandTimeout time.Duration
	// Retry governs connecting to the browser.
	Retry retry.Config
}

type handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Transport implements transport.Transport for a single browser session.
// Commands are executed one at a time.
type Transport struct {
	opts  Options
	log   seltracelog.Logger
	retry *retry.Helper

	mu        sync.Mutex
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	frames    []*rod.Page
	elements  map[string]*rod.Element
	sessionID string
	stopWatch context.CancelFunc

	dialogs dialogState

	handlers map[string]handler
}

var _ transport.Transport = (*Transport)(nil)

// New creates a transport. Nothing is launched until the new-session
// command arrives. It panics if log is nil.
func New(opts Options, log seltracelog.Logger) *Transport {
	if log == nil {
		panic("rodtransport.New requires a non-nil logger")
	}
	t := &Transport{
		opts:     opts,
		log:      log.With("component", "RodTransport"),
		retry:    retry.NewHelper(log),
		elements: make(map[string]*rod.Element),
	}
	t.handlers = map[string]handler{
		transport.NewSession:           t.newSession,
		transport.Quit:                 t.quit,
		transport.Get:                  t.navigate,
		transport.GetCurrentURL:        t.currentURL,
		transport.GetTitle:             t.title,
		transport.GetPageSource:        t.pageSource,
		transport.Screenshot:           t.screenshot,
		transport.Back:                 t.back,
		transport.Forward:              t.forward,
		transport.Refresh:              t.refresh,
		transport.ExecuteScript:        t.executeScript,
		transport.ExecuteAsyncScript:   t.executeAsyncScript,
		transport.FindElement:          t.finder(false, true),
		transport.FindElements:         t.finder(false, false),
		transport.FindChildElement:     t.finder(true, true),
		transport.FindChildElements:    t.finder(true, false),
		transport.GetActiveElement:     t.activeElement,
		transport.Close:                t.closeWindow,
		transport.GetWindowHandle:      t.windowHandle,
		transport.GetWindowHandles:     t.windowHandles,
		transport.SwitchToWindow:       t.switchToWindow,
		transport.SwitchToFrame:        t.switchToFrame,
		transport.SwitchToParentFrame:  t.switchToParentFrame,
		transport.AddCookie:            t.addCookie,
		transport.GetAllCookies:        t.cookies,
		transport.DeleteCookie:         t.deleteCookie,
		transport.DeleteAllCookies:     t.deleteAllCookies,
		transport.AcceptAlert:          t.dialogAction(true),
		transport.DismissAlert:         t.dialogAction(false),
		transport.GetAlertText:         t.alertText,
		transport.SetAlertValue:        t.setAlertValue,
		transport.ClickElement:         t.click,
		transport.ClearElement:         t.clear,
		transport.SubmitElement:        t.submit,
		transport.SendKeysToElement:    t.sendKeys,
		transport.GetElementAttribute:  t.attribute,
		transport.GetElementText:       t.text,
		transport.GetElementTagName:    t.tagName,
		transport.IsElementDisplayed:   t.isDisplayed,
		transport.IsElementEnabled:     t.isEnabled,
		transport.IsElementSelected:    t.isSelected,
		transport.GetElementValueOfCSS: t.cssValue,
		transport.GetElementRect:       t.rect,
		transport.ElementScreenshot:    t.elementScreenshot,
		transport.UploadFile:           t.uploadFile,
	}
	return t
}

// Execute runs cmd. Browser-side failures come back as responses carrying
// a W3C error code; only a lost connection is returned as an error.
func (t *Transport) Execute(ctx context.Context, cmd transport.Command) (*transport.Response, error) {
	h, ok := t.handlers[cmd.Name]
	if !ok {
		return failure(codeUnknownCommand, fmt.Sprintf("unknown command: %s", cmd.Name)), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cmd.Name != transport.NewSession {
		if t.browser == nil {
			return failure(codeInvalidSessionID, "invalid session id: no active session"), nil
		}
		if cmd.SessionID != "" && cmd.SessionID != t.sessionID {
			return failure(codeInvalidSessionID, fmt.Sprintf("invalid session id: %s", cmd.SessionID)), nil
		}
	}

	if t.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.CommandTimeout)
		defer cancel()
	}

	value, err := h(ctx, cmd.Params)
	if err != nil {
		if isConnectionLoss(err) {
			return nil, fmt.Errorf("%s: %w", cmd.Name, err)
		}
		resp := toResponse(err)
		resp.SessionID = t.sessionID
		t.log.Debugf("Command %s failed with '%s': %s", cmd.Name, resp.Error, resp.Message)
		return resp, nil
	}
	return &transport.Response{SessionID: t.sessionID, Value: value}, nil
}

func (t *Transport) newSession(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if t.browser != nil {
		return nil, sessionNotCreated("a session is already active on this transport")
	}

	err := t.retry.Do(ctx, t.connectPolicy(), func(ctx context.Context) error {
		return t.connect(ctx)
	})
	if err != nil {
		return nil, sessionNotCreated(err.Error())
	}

	page, err := t.newPage()
	if err != nil {
		t.shutdown()
		return nil, sessionNotCreated(fmt.Sprintf("failed to open a page: %v", err))
	}
	t.attach(page)
	t.sessionID = uuid.NewString()

	caps := map[string]interface{}{}
	if desired, ok := params["capabilities"].(map[string]interface{}); ok {
		if always, ok := desired["alwaysMatch"].(map[string]interface{}); ok {
			for k, v := range always {
				caps[k] = v
			}
		}
	}
	caps["browserName"] = "chrome"
	caps["takesScreenshot"] = true
	caps["javascriptEnabled"] = true
	caps["seltrace:stealth"] = t.opts.Stealth
	if v, err := (proto.BrowserGetVersion{}).Call(t.browser); err == nil {
		caps["browserVersion"] = v.Product
	}
	t.log.Infof("Browser session %s started", t.sessionID)
	return map[string]interface{}{"sessionId": t.sessionID, "capabilities": caps}, nil
}

func (t *Transport) connectPolicy() retry.Config {
	cfg := t.opts.Retry
	if cfg.Operation == "" {
		cfg.Operation = "browser connect"
	}
	return cfg
}

// connect launches or attaches to the browser. The browser outlives the
// command that created it, so ctx only gates the attempt.
func (t *Transport) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	controlURL := t.opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Leakless(true).Headless(t.opts.Headless)
		if t.opts.BinPath != "" {
			l = l.Bin(t.opts.BinPath)
		}
		u, err := l.Launch()
		if err != nil {
			l.Kill()
			return fmt.Errorf("launch browser: %w", err)
		}
		t.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if t.launcher != nil {
			t.launcher.Kill()
			t.launcher = nil
		}
		return fmt.Errorf("connect to browser at %s: %w", controlURL, err)
	}
	t.browser = b
	return nil
}

func (t *Transport) newPage() (*rod.Page, error) {
	if t.opts.Stealth {
		return stealth.Page(t.browser)
	}
	return t.browser.Page(proto.TargetCreateTarget{})
}

// attach makes p the current window and starts watching its dialogs.
func (t *Transport) attach(p *rod.Page) {
	if t.stopWatch != nil {
		t.stopWatch()
	}
	t.page = p
	t.frames = nil
	t.dialogs.set(nil)
	t.stopWatch = t.dialogs.watch(p)
}

func (t *Transport) quit(context.Context, map[string]interface{}) (interface{}, error) {
	t.log.Infof("Browser session %s ending", t.sessionID)
	return nil, t.shutdown()
}

func (t *Transport) shutdown() error {
	if t.stopWatch != nil {
		t.stopWatch()
		t.stopWatch = nil
	}
	var err error
	if t.browser != nil {
		err = t.browser.Close()
	}
	if t.launcher != nil {
		t.launcher.Kill()
		t.launcher.Cleanup()
	}
	t.browser, t.launcher, t.page, t.frames = nil, nil, nil, nil
	t.elements = make(map[string]*rod.Element)
	t.sessionID = ""
	return err
}

// Close ends the session if one is still active.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser == nil {
		return nil
	}
	return t.shutdown()
}

// top returns the current window bound to ctx.
func (t *Transport) top(ctx context.Context) (*rod.Page, error) {
	if t.page == nil {
		return nil, noSuchWindow("no such window: the current window was closed")
	}
	return t.page.Context(ctx), nil
}

// scope returns the current browsing context, a frame when one is selected.
func (t *Transport) scope(ctx context.Context) (*rod.Page, error) {
	if n := len(t.frames); n > 0 {
		return t.frames[n-1].Context(ctx), nil
	}
	return t.top(ctx)
}

func (t *Transport) register(el *rod.Element) map[string]interface{} {
	id := uuid.NewString()
	t.elements[id] = el
	return transport.ElementRef(id)
}

func (t *Transport) element(ctx context.Context, id string) (*rod.Element, error) {
	el, ok := t.elements[id]
	if !ok {
		return nil, staleElement(id)
	}
	return el.Context(ctx), nil
}
