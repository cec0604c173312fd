package rodtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
)

// W3C error codes produced by this transport, beyond the ones the errors
// package names.
const (
	codeUnknownCommand        = seltraceerrors.CodeUnknownCommand
	codeNoSuchElement         = seltraceerrors.CodeNoSuchElement
	codeInvalidSessionID      = "invalid session id"
	codeNoSuchWindow          = "no such window"
	codeNoSuchFrame           = "no such frame"
	codeNoSuchAlert           = "no such alert"
	codeStaleElement          = "stale element reference"
	codeNotInteractable       = "element not interactable"
	codeClickIntercepted      = "element click intercepted"
	codeJavascriptError       = "javascript error"
	codeTimeout               = "timeout"
	codeUnableToSetCookie     = "unable to set cookie"
	codeUnableToCaptureScreen = "unable to capture screen"
)

func failure(code, message string) *transport.Response {
	return &transport.Response{Error: code, Message: message}
}

func driverErr(code, format string, args ...interface{}) error {
	return seltraceerrors.NewDriverError(code, fmt.Sprintf(format, args...), nil)
}

func sessionNotCreated(msg string) error {
	return seltraceerrors.NewSessionNotCreatedError("session not created: "+msg, nil)
}

func noSuchWindow(msg string) error { return driverErr(codeNoSuchWindow, "%s", msg) }

func staleElement(id string) error {
	return driverErr(codeStaleElement, "stale element reference: element %s is not known in this session", id)
}

// toResponse maps a failure onto a W3C error response.
func toResponse(err error) *transport.Response {
	if de, ok := seltraceerrors.AsDriverError(err); ok {
		return failure(de.Code, de.Message)
	}

	var (
		covered      *rod.CoveredError
		invisible    *rod.InvisibleShapeError
		interactable *rod.NotInteractableError
		objNotFound  *rod.ObjectNotFoundError
		evalErr      *rod.EvalError
		cdpErr       *cdp.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return failure(codeTimeout, "timeout: "+err.Error())
	case errors.As(err, &covered):
		return failure(codeClickIntercepted, "element click intercepted: "+err.Error())
	case errors.As(err, &invisible), errors.As(err, &interactable):
		return failure(codeNotInteractable, "element not interactable: "+err.Error())
	case errors.As(err, &objNotFound):
		return failure(codeStaleElement, "stale element reference: "+err.Error())
	case errors.As(err, &evalErr):
		return failure(codeJavascriptError, "javascript error: "+err.Error())
	case errors.As(err, &cdpErr) && isDetachedNode(cdpErr.Message):
		return failure(codeStaleElement, "stale element reference: "+cdpErr.Message)
	}
	return failure(seltraceerrors.CodeUnknownError, err.Error())
}

func isDetachedNode(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "no node with given id") ||
		strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "cannot find context with specified id")
}

// isConnectionLoss reports failures of the DevTools connection itself.
// The driver turns these into unreachable-browser errors.
func isConnectionLoss(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.As(err, &opErr)
}
