package rodtransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gxo-labs/seltrace/internal/paramutil"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
)

// searchRoot is a page or element elements can be looked up in.
type searchRoot interface {
	Elements(selector string) (rod.Elements, error)
	ElementsX(xpath string) (rod.Elements, error)
}

// query resolves a W3C locator strategy to a CSS selector or an XPath.
func query(using, value string) (selector string, xpath bool, err error) {
	switch using {
	case "css selector", "tag name":
		return value, false, nil
	case "xpath":
		return value, true, nil
	case "link text":
		return fmt.Sprintf(".//a[normalize-space(.)=%s]", xpathLiteral(value)), true, nil
	case "partial link text":
		return fmt.Sprintf(".//a[contains(., %s)]", xpathLiteral(value)), true, nil
	}
	return "", false, seltraceerrors.NewInvalidArgumentError(fmt.Sprintf("invalid argument: unsupported locator strategy '%s'", using), nil)
}

func xpathLiteral(v string) string {
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	parts := strings.Split(v, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func (t *Transport) finder(child, single bool) handler {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		using, err := paramutil.GetRequiredString(params, "using")
		if err != nil {
			return nil, err
		}
		value, err := paramutil.GetRequiredString(params, "value")
		if err != nil {
			return nil, err
		}
		selector, isXPath, err := query(using, value)
		if err != nil {
			return nil, err
		}

		var root searchRoot
		if child {
			id, err := paramutil.GetRequiredString(params, "id")
			if err != nil {
				return nil, err
			}
			if root, err = t.element(ctx, id); err != nil {
				return nil, err
			}
		} else {
			p, err := t.scope(ctx)
			if err != nil {
				return nil, err
			}
			root = p
		}

		var els rod.Elements
		if isXPath {
			els, err = root.ElementsX(selector)
		} else {
			els, err = root.Elements(selector)
		}
		if err != nil {
			return nil, err
		}

		if single {
			if len(els) == 0 {
				desc, _ := json.Marshal(map[string]string{"method": using, "selector": value})
				return nil, seltraceerrors.NewNoSuchElementError("no such element: Unable to locate element: "+string(desc), nil)
			}
			return t.register(els[0]), nil
		}
		refs := make([]interface{}, 0, len(els))
		for _, el := range els {
			refs = append(refs, t.register(el))
		}
		return refs, nil
	}
}

// withElement resolves the "id" parameter before running fn.
func (t *Transport) withElement(ctx context.Context, params map[string]interface{}, fn func(*rod.Element) (interface{}, error)) (interface{}, error) {
	id, err := paramutil.GetRequiredString(params, "id")
	if err != nil {
		return nil, err
	}
	el, err := t.element(ctx, id)
	if err != nil {
		return nil, err
	}
	return fn(el)
}

func (t *Transport) click(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		return nil, el.Click(proto.InputMouseButtonLeft, 1)
	})
}

const clearScript = `function() {
	this.value = '';
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

func (t *Transport) clear(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		_, err := el.Eval(clearScript)
		return nil, err
	})
}

const submitScript = `function() {
	const form = this.form || this.closest('form');
	if (!form) { return false; }
	form.submit();
	return true;
}`

func (t *Transport) submit(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		res, err := el.Eval(submitScript)
		if err != nil {
			return nil, err
		}
		if !res.Value.Bool() {
			return nil, seltraceerrors.NewNoSuchElementError("no such element: the element is not inside a form", nil)
		}
		return nil, nil
	})
}

// sendKeys types text, or attaches it as a file when the element is a
// file input.
func (t *Transport) sendKeys(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	text, err := paramutil.GetRequiredString(params, "text")
	if err != nil {
		return nil, err
	}
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		typ, err := el.Attribute("type")
		if err != nil {
			return nil, err
		}
		if typ != nil && strings.EqualFold(*typ, "file") {
			return nil, el.SetFiles(strings.Split(text, "\n"))
		}
		return nil, el.Input(text)
	})
}

func (t *Transport) attribute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := paramutil.GetRequiredString(params, "name")
	if err != nil {
		return nil, err
	}
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		v, err := el.Attribute(name)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	})
}

func (t *Transport) text(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		return el.Text()
	})
}

func (t *Transport) evalElement(ctx context.Context, params map[string]interface{}, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	var obj *proto.RuntimeRemoteObject
	_, err := t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		var err error
		obj, err = el.Eval(js, args...)
		return nil, err
	})
	return obj, err
}

func (t *Transport) tagName(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	obj, err := t.evalElement(ctx, params, `function() { return this.tagName.toLowerCase(); }`)
	if err != nil {
		return nil, err
	}
	return obj.Value.Str(), nil
}

func (t *Transport) isDisplayed(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		return el.Visible()
	})
}

func (t *Transport) isEnabled(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	obj, err := t.evalElement(ctx, params, `function() { return !this.disabled; }`)
	if err != nil {
		return nil, err
	}
	return obj.Value.Bool(), nil
}

func (t *Transport) isSelected(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	obj, err := t.evalElement(ctx, params, `function() { return !!(this.checked || this.selected); }`)
	if err != nil {
		return nil, err
	}
	return obj.Value.Bool(), nil
}

func (t *Transport) cssValue(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	prop, err := paramutil.GetRequiredString(params, "propertyName")
	if err != nil {
		return nil, err
	}
	obj, err := t.evalElement(ctx, params, `function(p) { return getComputedStyle(this).getPropertyValue(p); }`, prop)
	if err != nil {
		return nil, err
	}
	return obj.Value.Str(), nil
}

func (t *Transport) rect(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	obj, err := t.evalElement(ctx, params, `function() {
	const r = this.getBoundingClientRect();
	return { x: r.x, y: r.y, width: r.width, height: r.height };
}`)
	if err != nil {
		return nil, err
	}
	return obj.Value.Val(), nil
}

func (t *Transport) elementScreenshot(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.withElement(ctx, params, func(el *rod.Element) (interface{}, error) {
		png, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		if err != nil {
			return nil, driverErr(codeUnableToCaptureScreen, "unable to capture screen: %v", err)
		}
		return base64.StdEncoding.EncodeToString(png), nil
	})
}

// uploadFile hands back the local path: the browser runs on this machine
// or reads the same filesystem, so file inputs can take the path as is.
func (t *Transport) uploadFile(_ context.Context, params map[string]interface{}) (interface{}, error) {
	return paramutil.GetRequiredString(params, "file")
}
