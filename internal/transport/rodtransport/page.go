package rodtransport

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gxo-labs/seltrace/internal/paramutil"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

func (t *Transport) navigate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	url, err := paramutil.GetRequiredString(params, "url")
	if err != nil {
		return nil, err
	}
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	t.frames = nil
	if err := p.Navigate(url); err != nil {
		return nil, err
	}
	return nil, p.WaitLoad()
}

func (t *Transport) history(ctx context.Context, move func(*rod.Page) error) (interface{}, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	t.frames = nil
	if err := move(p); err != nil {
		return nil, err
	}
	return nil, p.WaitLoad()
}

func (t *Transport) back(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.history(ctx, (*rod.Page).NavigateBack)
}

func (t *Transport) forward(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.history(ctx, (*rod.Page).NavigateForward)
}

func (t *Transport) refresh(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.history(ctx, (*rod.Page).Reload)
}

func (t *Transport) info(ctx context.Context) (*proto.TargetTargetInfo, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	return p.Info()
}

func (t *Transport) currentURL(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	info, err := t.info(ctx)
	if err != nil {
		return nil, err
	}
	return info.URL, nil
}

func (t *Transport) title(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	info, err := t.info(ctx)
	if err != nil {
		return nil, err
	}
	return info.Title, nil
}

func (t *Transport) pageSource(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.scope(ctx)
	if err != nil {
		return nil, err
	}
	return p.HTML()
}

func (t *Transport) screenshot(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	png, err := p.Screenshot(false, nil)
	if err != nil {
		return nil, driverErr(codeUnableToCaptureScreen, "unable to capture screen: %v", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// scriptFunction turns a WebDriver script body into a function so that
// `arguments` and `return` behave as in the WebDriver protocol.
func scriptFunction(body string) string {
	return "function() {\n" + body + "\n}"
}

func asyncScriptFunction(body string) string {
	return `function() {
	const args = Array.prototype.slice.call(arguments);
	return new Promise((resolve) => {
		args.push(resolve);
		(function() {
` + body + `
		}).apply(this, args);
	});
}`
}

func (t *Transport) executeScript(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.evaluate(ctx, params, false)
}

func (t *Transport) executeAsyncScript(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.evaluate(ctx, params, true)
}

func (t *Transport) evaluate(ctx context.Context, params map[string]interface{}, async bool) (interface{}, error) {
	script, err := paramutil.GetRequiredString(params, "script")
	if err != nil {
		return nil, err
	}
	raw, err := paramutil.GetOptionalSlice(params, "args")
	if err != nil {
		return nil, err
	}
	args, err := t.scriptArgs(raw)
	if err != nil {
		return nil, err
	}
	p, err := t.scope(ctx)
	if err != nil {
		return nil, err
	}

	js := scriptFunction(script)
	if async {
		js = asyncScriptFunction(script)
	}
	opts := rod.Eval(js, args...).ByObject()
	if async {
		opts = opts.ByPromise()
	}
	obj, err := p.Evaluate(opts)
	if err != nil {
		return nil, err
	}
	return t.scriptResult(p, obj)
}

// scriptArgs replaces element references with the remote objects they
// stand for.
func (t *Transport) scriptArgs(raw []interface{}) ([]interface{}, error) {
	args := make([]interface{}, len(raw))
	for i, a := range raw {
		if m, ok := a.(map[string]interface{}); ok {
			if id, ok := m[transport.ElementKey].(string); ok {
				el, ok := t.elements[id]
				if !ok {
					return nil, staleElement(id)
				}
				args[i] = el.Object
				continue
			}
		}
		args[i] = a
	}
	return args, nil
}

// scriptResult turns a returned DOM node, or list of nodes, into element
// references and anything else into its JSON value.
func (t *Transport) scriptResult(p *rod.Page, obj *proto.RuntimeRemoteObject) (interface{}, error) {
	if obj == nil {
		return nil, nil
	}
	switch obj.Subtype {
	case proto.RuntimeRemoteObjectSubtypeNode:
		el, err := p.ElementFromObject(obj)
		if err != nil {
			return nil, err
		}
		return t.register(el), nil
	case proto.RuntimeRemoteObjectSubtypeArray, proto.RuntimeRemoteObjectSubtype("nodelist"):
		nodes, err := p.Evaluate(rod.Eval(`function() {
	return Array.from(this).length > 0 && Array.from(this).every((n) => n instanceof Node);
}`).This(obj))
		if err == nil && nodes.Value.Bool() {
			els, err := p.ElementsByJS(rod.Eval(`function() { return Array.from(this); }`).This(obj))
			if err != nil {
				return nil, err
			}
			refs := make([]interface{}, 0, len(els))
			for _, el := range els {
				refs = append(refs, t.register(el))
			}
			return refs, nil
		}
	}
	if obj.Type == proto.RuntimeRemoteObjectTypeUndefined {
		return nil, nil
	}
	v, err := p.ObjectToJSON(obj)
	if err != nil {
		return nil, err
	}
	return v.Val(), nil
}

func (t *Transport) activeElement(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.scope(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := p.Evaluate(rod.Eval(`function() { return document.activeElement; }`).ByObject())
	if err != nil {
		return nil, err
	}
	if obj.Subtype != proto.RuntimeRemoteObjectSubtypeNode {
		return nil, driverErr(codeNoSuchElement, "no such element: no element has focus")
	}
	el, err := p.ElementFromObject(obj)
	if err != nil {
		return nil, err
	}
	return t.register(el), nil
}

func (t *Transport) windowHandle(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	return string(p.TargetID), nil
}

func (t *Transport) handles() ([]interface{}, error) {
	pages, err := t.browser.Pages()
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(pages))
	for _, p := range pages {
		out = append(out, string(p.TargetID))
	}
	return out, nil
}

func (t *Transport) windowHandles(context.Context, map[string]interface{}) (interface{}, error) {
	return t.handles()
}

func (t *Transport) switchToWindow(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	handle, err := paramutil.GetRequiredString(params, "handle")
	if err != nil {
		return nil, err
	}
	pages, err := t.browser.Pages()
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if string(p.TargetID) != handle {
			continue
		}
		if _, err := p.Context(ctx).Activate(); err != nil {
			return nil, err
		}
		t.attach(p)
		return nil, nil
	}
	return nil, noSuchWindow(fmt.Sprintf("no such window: %s", handle))
}

// closeWindow closes the current window and returns the remaining handles.
func (t *Transport) closeWindow(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Close(); err != nil {
		return nil, err
	}
	if t.stopWatch != nil {
		t.stopWatch()
		t.stopWatch = nil
	}
	t.page, t.frames = nil, nil
	return t.handles()
}

func (t *Transport) switchToFrame(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, present := params["id"]
	if !present || id == nil {
		t.frames = nil
		return nil, nil
	}
	cur, err := t.scope(ctx)
	if err != nil {
		return nil, err
	}

	var frameEl *rod.Element
	if m, ok := id.(map[string]interface{}); ok {
		ref, _ := m[transport.ElementKey].(string)
		if frameEl, err = t.element(ctx, ref); err != nil {
			return nil, err
		}
	} else {
		idx, _, err := paramutil.GetOptionalInt(params, "id")
		if err != nil {
			return nil, err
		}
		frames, err := cur.Elements("iframe, frame")
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(frames) {
			return nil, driverErr(codeNoSuchFrame, "no such frame: index %d out of %d", idx, len(frames))
		}
		frameEl = frames[idx]
	}

	frame, err := frameEl.Frame()
	if err != nil {
		return nil, driverErr(codeNoSuchFrame, "no such frame: %v", err)
	}
	t.frames = append(t.frames, frame)
	return nil, nil
}

func (t *Transport) switchToParentFrame(context.Context, map[string]interface{}) (interface{}, error) {
	if n := len(t.frames); n > 0 {
		t.frames = t.frames[:n-1]
	}
	return nil, nil
}
