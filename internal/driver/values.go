package driver

import (
	"encoding/base64"
	"fmt"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

// Cookie is a browser cookie.
type Cookie struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Secure   bool   `json:"secure,omitempty" yaml:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty" yaml:"httpOnly,omitempty"`
	Expiry   int64  `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

func (c Cookie) wire() map[string]interface{} {
	m := map[string]interface{}{"name": c.Name, "value": c.Value}
	if c.Path != "" {
		m["path"] = c.Path
	}
	if c.Domain != "" {
		m["domain"] = c.Domain
	}
	if c.Secure {
		m["secure"] = true
	}
	if c.HTTPOnly {
		m["httpOnly"] = true
	}
	if c.Expiry > 0 {
		m["expiry"] = c.Expiry
	}
	return m
}

func (c Cookie) String() string { return c.Name + "=" + c.Value }

// Rect is an element's location and size in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g, %g) %gx%g", r.X, r.Y, r.Width, r.Height)
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

func asInt64(v interface{}) int64 {
	return int64(asFloat(v))
}

func decodeRect(v interface{}) Rect {
	m, _ := v.(map[string]interface{})
	return Rect{X: asFloat(m["x"]), Y: asFloat(m["y"]), Width: asFloat(m["width"]), Height: asFloat(m["height"])}
}

func decodeCookies(v interface{}) []Cookie {
	list, _ := v.([]interface{})
	out := make([]Cookie, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Cookie{
			Name:     asString(m["name"]),
			Value:    asString(m["value"]),
			Path:     asString(m["path"]),
			Domain:   asString(m["domain"]),
			Secure:   asBool(m["secure"]),
			HTTPOnly: asBool(m["httpOnly"]),
			Expiry:   asInt64(m["expiry"]),
		})
	}
	return out
}

func decodeStrings(v interface{}) []string {
	list, _ := v.([]interface{})
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, asString(item))
	}
	return out
}

// elementID extracts the id from a W3C element reference.
func elementID(v interface{}) (string, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return "", false
	}
	id, ok := m[transport.ElementKey].(string)
	return id, ok && id != ""
}

func decodePNG(v interface{}) ([]byte, error) {
	encoded, ok := v.(string)
	if !ok {
		return nil, seltraceerrors.NewDriverError(seltraceerrors.CodeUnknownError, fmt.Sprintf("screenshot response is %T, not base64 text", v), nil)
	}
	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, seltraceerrors.NewDriverError(seltraceerrors.CodeUnknownError, "screenshot response is not valid base64", err)
	}
	return png, nil
}

// wireArgs converts script arguments into their wire form: elements become
// element references, containers are converted recursively.
func wireArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = wireValue(a)
	}
	return out
}

func wireValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *Element:
		return transport.ElementRef(t.id)
	case []interface{}:
		return wireArgs(t)
	case []*Element:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = transport.ElementRef(e.id)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = wireValue(e)
		}
		return out
	}
	return v
}

// fromWire converts a script result back: element references become
// elements owned by s.
func (s *Session) fromWire(v interface{}) interface{} {
	if id, ok := elementID(v); ok {
		return s.newElement(id, s, "By.script(result)")
	}
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = s.fromWire(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = s.fromWire(e)
		}
		return out
	}
	return v
}
