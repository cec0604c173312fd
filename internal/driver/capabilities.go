package driver

import (
	"fmt"
	"sort"
	"strings"
)

// Capabilities are the browser features negotiated once at session
// creation. Flags default to enabled when the browser does not mention them.
type Capabilities struct {
	BrowserName         string
	BrowserVersion      string
	PlatformName        string
	AcceptInsecureCerts bool
	TakesScreenshot     bool
	JavascriptEnabled   bool
	Raw                 map[string]interface{}
}

// negotiate extracts the session id and capabilities from a new-session
// response value of the form {"sessionId": ..., "capabilities": {...}}.
func negotiate(value interface{}) (string, Capabilities) {
	caps := Capabilities{TakesScreenshot: true, JavascriptEnabled: true, Raw: map[string]interface{}{}}
	m, ok := value.(map[string]interface{})
	if !ok {
		return "", caps
	}
	id := asString(m["sessionId"])
	raw, _ := m["capabilities"].(map[string]interface{})
	for k, v := range raw {
		caps.Raw[k] = v
	}
	caps.BrowserName = asString(raw["browserName"])
	caps.BrowserVersion = asString(raw["browserVersion"])
	caps.PlatformName = asString(raw["platformName"])
	caps.AcceptInsecureCerts, _ = raw["acceptInsecureCerts"].(bool)
	if v, ok := raw["takesScreenshot"].(bool); ok {
		caps.TakesScreenshot = v
	}
	if v, ok := raw["javascriptEnabled"].(bool); ok {
		caps.JavascriptEnabled = v
	}
	return id, caps
}

func (c Capabilities) String() string {
	keys := make([]string, 0, len(c.Raw))
	for k := range c.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, c.Raw[k]))
	}
	return "Capabilities {" + strings.Join(parts, ", ") + "}"
}
