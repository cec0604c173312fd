package rodtransport

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gxo-labs/seltrace/internal/paramutil"
)

// dialogState tracks the JavaScript dialog open on the current window.
// Events arrive on a watcher goroutine.
type dialogState struct {
	mu     sync.Mutex
	open   *proto.PageJavascriptDialogOpening
	prompt *string
}

func (d *dialogState) set(e *proto.PageJavascriptDialogOpening) {
	d.mu.Lock()
	d.open = e
	d.prompt = nil
	d.mu.Unlock()
}

func (d *dialogState) current() (*proto.PageJavascriptDialogOpening, *string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open, d.prompt
}

func (d *dialogState) setPrompt(text string) {
	d.mu.Lock()
	d.prompt = &text
	d.mu.Unlock()
}

// watch follows dialog events on p until the returned function is called.
func (d *dialogState) watch(p *rod.Page) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	wait := p.Context(ctx).EachEvent(
		func(e *proto.PageJavascriptDialogOpening) { d.set(e) },
		func(*proto.PageJavascriptDialogClosed) { d.set(nil) },
	)
	go wait()
	return cancel
}

func noSuchAlert() error {
	return driverErr(codeNoSuchAlert, "no such alert: no dialog is open")
}

func (t *Transport) dialogAction(accept bool) handler {
	return func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		open, prompt := t.dialogs.current()
		if open == nil {
			return nil, noSuchAlert()
		}
		p, err := t.top(ctx)
		if err != nil {
			return nil, err
		}
		req := proto.PageHandleJavaScriptDialog{Accept: accept}
		if accept && prompt != nil {
			req.PromptText = *prompt
		}
		if err := req.Call(p); err != nil {
			return nil, err
		}
		t.dialogs.set(nil)
		return nil, nil
	}
}

func (t *Transport) alertText(context.Context, map[string]interface{}) (interface{}, error) {
	open, _ := t.dialogs.current()
	if open == nil {
		return nil, noSuchAlert()
	}
	return open.Message, nil
}

func (t *Transport) setAlertValue(_ context.Context, params map[string]interface{}) (interface{}, error) {
	text, err := paramutil.GetRequiredString(params, "text")
	if err != nil {
		return nil, err
	}
	open, _ := t.dialogs.current()
	if open == nil {
		return nil, noSuchAlert()
	}
	if open.Type != proto.PageDialogTypePrompt {
		return nil, driverErr(codeNotInteractable, "element not interactable: a %s dialog takes no text", open.Type)
	}
	t.dialogs.setPrompt(text)
	return nil, nil
}
