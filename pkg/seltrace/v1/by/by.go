// Package by defines symbolic element locators and their stable kind tags.
package by

import (
	"fmt"
	"strings"
)

// Kind is the stable tag identifying a category of locator. The locator
// resolver memoizes its mechanism choice per Kind.
type Kind string

const (
	KindID              Kind = "id"
	KindName            Kind = "name"
	KindClassName       Kind = "className"
	KindCSSSelector     Kind = "cssSelector"
	KindXPath           Kind = "xpath"
	KindLinkText        Kind = "linkText"
	KindPartialLinkText Kind = "partialLinkText"
	KindTagName         Kind = "tagName"
)

// W3C location strategies used on the wire.
const (
	UsingCSSSelector     = "css selector"
	UsingXPath           = "xpath"
	UsingLinkText        = "link text"
	UsingPartialLinkText = "partial link text"
	UsingTagName         = "tag name"
)

// Locator is a symbolic element-locating expression.
type Locator interface {
	// Kind returns the locator's category tag.
	Kind() Kind
	// String returns the human readable description, e.g. By.id("login").
	String() string
}

// RemoteLocator is implemented by locators the browser can evaluate
// server-side.
type RemoteLocator interface {
	Locator
	RemoteParameters() (using, value string)
}

// Translator is implemented by locators that can be evaluated client-side
// by rewriting them into another locator.
type Translator interface {
	Locator
	Translate() (Locator, bool)
}

// By is the built-in locator covering the standard kinds.
type By struct {
	kind  Kind
	value string
}

// ID locates by element id.
func ID(v string) By { return By{kind: KindID, value: v} }

// Name locates by the name attribute.
func Name(v string) By { return By{kind: KindName, value: v} }

// ClassName locates by a single class name.
func ClassName(v string) By { return By{kind: KindClassName, value: v} }

// CSSSelector locates by CSS selector.
func CSSSelector(v string) By { return By{kind: KindCSSSelector, value: v} }

// XPath locates by XPath expression.
func XPath(v string) By { return By{kind: KindXPath, value: v} }

// LinkText locates anchors by their exact text.
func LinkText(v string) By { return By{kind: KindLinkText, value: v} }

// PartialLinkText locates anchors whose text contains v.
func PartialLinkText(v string) By { return By{kind: KindPartialLinkText, value: v} }

// TagName locates by tag name.
func TagName(v string) By { return By{kind: KindTagName, value: v} }

// New builds a built-in locator from a kind tag, as used in step scripts.
func New(kind, value string) (By, error) {
	k := Kind(kind)
	switch k {
	case KindID, KindName, KindClassName, KindCSSSelector, KindXPath,
		KindLinkText, KindPartialLinkText, KindTagName:
		return By{kind: k, value: value}, nil
	case "css":
		return CSSSelector(value), nil
	}
	return By{}, fmt.Errorf("unknown locator kind '%s'", kind)
}

// Kind returns the locator kind.
func (b By) Kind() Kind { return b.kind }

// Value returns the raw locator value.
func (b By) Value() string { return b.value }

// String renders b as By.kind("value"), the form used in records.
func (b By) String() string { return fmt.Sprintf("By.%s(%q)", b.kind, b.value) }

// RemoteParameters returns the W3C strategy and value for b. Kinds without
// a native strategy are expressed as CSS selectors.
func (b By) RemoteParameters() (string, string) {
	switch b.kind {
	case KindCSSSelector:
		return UsingCSSSelector, b.value
	case KindXPath:
		return UsingXPath, b.value
	case KindLinkText:
		return UsingLinkText, b.value
	case KindPartialLinkText:
		return UsingPartialLinkText, b.value
	case KindTagName:
		return UsingTagName, b.value
	case KindID:
		return UsingCSSSelector, "#" + escapeCSS(b.value)
	case KindName:
		return UsingCSSSelector, fmt.Sprintf("*[name='%s']", strings.ReplaceAll(b.value, "'", "\\'"))
	case KindClassName:
		return UsingCSSSelector, "." + escapeCSS(b.value)
	}
	return "", ""
}

// Translate rewrites b into a CSS or XPath locator for client-side evaluation.
func (b By) Translate() (Locator, bool) {
	switch b.kind {
	case KindID, KindName, KindClassName:
		_, css := b.RemoteParameters()
		return CSSSelector(css), true
	case KindLinkText:
		return XPath(fmt.Sprintf(".//a[normalize-space(.)=%s]", xpathLiteral(b.value))), true
	case KindPartialLinkText:
		return XPath(fmt.Sprintf(".//a[contains(., %s)]", xpathLiteral(b.value))), true
	}
	return nil, false
}

// Preseeded lists the kinds the resolver starts out treating as remote.
func Preseeded() []Kind {
	return []Kind{KindCSSSelector, KindLinkText, KindPartialLinkText, KindTagName, KindXPath}
}

func escapeCSS(v string) string {
	var b strings.Builder
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9' && i == 0:
			fmt.Fprintf(&b, "\\%x ", r)
		case r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127:
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
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
