package rodtransport

import (
	"context"

	"github.com/go-rod/rod/lib/proto"
	"github.com/gxo-labs/seltrace/internal/paramutil"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
)

func (t *Transport) addCookie(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	c, ok, err := paramutil.GetOptionalMap(params, "cookie")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, driverErr(seltraceerrors.CodeInvalidArgument, "invalid argument: missing required parameter 'cookie'")
	}
	name, err := paramutil.GetRequiredString(c, "name")
	if err != nil {
		return nil, err
	}
	value, err := paramutil.GetRequiredString(c, "value")
	if err != nil {
		return nil, err
	}
	param := &proto.NetworkCookieParam{Name: name, Value: value}
	if param.Path, _, err = paramutil.GetOptionalString(c, "path"); err != nil {
		return nil, err
	}
	if param.Domain, _, err = paramutil.GetOptionalString(c, "domain"); err != nil {
		return nil, err
	}
	if param.Secure, _, err = paramutil.GetOptionalBool(c, "secure"); err != nil {
		return nil, err
	}
	if param.HTTPOnly, _, err = paramutil.GetOptionalBool(c, "httpOnly"); err != nil {
		return nil, err
	}
	sameSite, _, err := paramutil.GetOptionalString(c, "sameSite")
	if err != nil {
		return nil, err
	}
	param.SameSite = proto.NetworkCookieSameSite(sameSite)

	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	if param.Domain == "" {
		info, err := p.Info()
		if err != nil {
			return nil, err
		}
		param.URL = info.URL
	}
	if err := p.SetCookies([]*proto.NetworkCookieParam{param}); err != nil {
		return nil, driverErr(codeUnableToSetCookie, "unable to set cookie: %v", err)
	}
	return nil, nil
}

func (t *Transport) cookies(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := p.Cookies(nil)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(cs))
	for _, c := range cs {
		out = append(out, map[string]interface{}{
			"name":     c.Name,
			"value":    c.Value,
			"domain":   c.Domain,
			"path":     c.Path,
			"secure":   c.Secure,
			"httpOnly": c.HTTPOnly,
			"sameSite": string(c.SameSite),
		})
	}
	return out, nil
}

func (t *Transport) deleteCookie(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := paramutil.GetRequiredString(params, "name")
	if err != nil {
		return nil, err
	}
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	info, err := p.Info()
	if err != nil {
		return nil, err
	}
	return nil, proto.NetworkDeleteCookies{Name: name, URL: info.URL}.Call(p)
}

func (t *Transport) deleteAllCookies(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	p, err := t.top(ctx)
	if err != nil {
		return nil, err
	}
	return nil, proto.NetworkClearBrowserCookies{}.Call(p)
}
