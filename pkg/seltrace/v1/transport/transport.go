// Package transport defines the collaborator that carries driver commands to
// the browser. The instrumentation layer only ever calls Execute.
package transport

import "context"

// Wire command names understood by transports.
const (
	NewSession           = "newSession"
	Quit                 = "quit"
	Get                  = "get"
	GetCurrentURL        = "getCurrentUrl"
	GetTitle             = "getTitle"
	GetPageSource        = "getPageSource"
	Screenshot           = "screenshot"
	ElementScreenshot    = "elementScreenshot"
	FindElement          = "findElement"
	FindElements         = "findElements"
	FindChildElement     = "findChildElement"
	FindChildElements    = "findChildElements"
	ExecuteScript        = "executeScript"
	ExecuteAsyncScript   = "executeAsyncScript"
	Back                 = "goBack"
	Forward              = "goForward"
	Refresh              = "refresh"
	Close                = "close"
	GetWindowHandle      = "getWindowHandle"
	GetWindowHandles     = "getWindowHandles"
	SwitchToWindow       = "switchToWindow"
	SwitchToFrame        = "switchToFrame"
	SwitchToParentFrame  = "switchToParentFrame"
	GetActiveElement     = "getActiveElement"
	AddCookie            = "addCookie"
	GetAllCookies        = "getCookies"
	DeleteCookie         = "deleteCookie"
	DeleteAllCookies     = "deleteAllCookies"
	AcceptAlert          = "acceptAlert"
	DismissAlert         = "dismissAlert"
	GetAlertText         = "getAlertText"
	SetAlertValue        = "setAlertValue"
	ClickElement         = "clickElement"
	ClearElement         = "clearElement"
	SubmitElement        = "submitElement"
	SendKeysToElement    = "sendKeysToElement"
	GetElementAttribute  = "getElementAttribute"
	GetElementText       = "getElementText"
	GetElementTagName    = "getElementTagName"
	IsElementDisplayed   = "isElementDisplayed"
	IsElementEnabled     = "isElementEnabled"
	IsElementSelected    = "isElementSelected"
	GetElementValueOfCSS = "getElementValueOfCssProperty"
	GetElementRect       = "getElementRect"
	UploadFile           = "uploadFile"
)

// ElementKey is the W3C key under which element references are returned.
const ElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Command is a single wire command addressed to a session.
type Command struct {
	SessionID string                 `json:"session_id,omitempty"`
	Name      string                 `json:"name"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// Response is the transport's answer. A non-empty Error carries a W3C error
// code and Message describes it; otherwise Value holds the result.
type Response struct {
	SessionID string      `json:"session_id,omitempty"`
	Value     interface{} `json:"value,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Failed reports whether the response carries an error code.
func (r *Response) Failed() bool { return r != nil && r.Error != "" }

// Transport executes wire commands against a browser. Errors returned from
// Execute are low-level failures (connection loss, protocol failures); the
// driver classifies them. Timeouts are the transport's responsibility.
type Transport interface {
	Execute(ctx context.Context, cmd Command) (*Response, error)
}

// ElementRef builds the W3C element reference value for id.
func ElementRef(id string) map[string]interface{} {
	return map[string]interface{}{ElementKey: id}
}
