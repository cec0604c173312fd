package rodtransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/gxo-labs/seltrace/internal/logger"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport() *Transport {
	return New(Options{Headless: true}, logger.NewLogger("error", "text", &bytes.Buffer{}))
}

func TestEveryWireCommandHasHandler(t *testing.T) {
	tr := newTestTransport()
	for _, name := range []string{
		transport.NewSession, transport.Quit, transport.Get, transport.GetCurrentURL, transport.GetTitle,
		transport.GetPageSource, transport.Screenshot, transport.ElementScreenshot, transport.FindElement,
		transport.FindElements, transport.FindChildElement, transport.FindChildElements, transport.ExecuteScript,
		transport.ExecuteAsyncScript, transport.Back, transport.Forward, transport.Refresh, transport.Close,
		transport.GetWindowHandle, transport.GetWindowHandles, transport.SwitchToWindow, transport.SwitchToFrame,
		transport.SwitchToParentFrame, transport.GetActiveElement, transport.AddCookie, transport.GetAllCookies,
		transport.DeleteCookie, transport.DeleteAllCookies, transport.AcceptAlert, transport.DismissAlert,
		transport.GetAlertText, transport.SetAlertValue, transport.ClickElement, transport.ClearElement,
		transport.SubmitElement, transport.SendKeysToElement, transport.GetElementAttribute, transport.GetElementText,
		transport.GetElementTagName, transport.IsElementDisplayed, transport.IsElementEnabled,
		transport.IsElementSelected, transport.GetElementValueOfCSS, transport.GetElementRect, transport.UploadFile,
	} {
		assert.Contains(t, tr.handlers, name)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	resp, err := newTestTransport().Execute(context.Background(), transport.Command{Name: "teleport"})
	require.NoError(t, err)
	assert.Equal(t, seltraceerrors.CodeUnknownCommand, resp.Error)
}

func TestExecuteWithoutSession(t *testing.T) {
	resp, err := newTestTransport().Execute(context.Background(), transport.Command{Name: transport.GetTitle})
	require.NoError(t, err)
	assert.Equal(t, codeInvalidSessionID, resp.Error)
	assert.True(t, resp.Failed())
}

func TestUploadFileReturnsLocalPath(t *testing.T) {
	v, err := newTestTransport().uploadFile(context.Background(), map[string]interface{}{"file": "/tmp/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.txt", v)
}

func TestStaleElementReference(t *testing.T) {
	_, err := newTestTransport().element(context.Background(), "missing")
	resp := toResponse(err)
	assert.Equal(t, codeStaleElement, resp.Error)
}

func TestQuery(t *testing.T) {
	tests := []struct {
		using, value string
		want         string
		xpath        bool
	}{
		{"css selector", "#login", "#login", false},
		{"tag name", "input", "input", false},
		{"xpath", "//div", "//div", true},
		{"link text", "Sign in", ".//a[normalize-space(.)='Sign in']", true},
		{"partial link text", "it's", `.//a[contains(., "it's")]`, true},
	}
	for _, tc := range tests {
		t.Run(tc.using, func(t *testing.T) {
			got, isXPath, err := query(tc.using, tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.xpath, isXPath)
		})
	}

	_, _, err := query("accessibility id", "x")
	assert.True(t, seltraceerrors.IsInvalidArgument(err))
	assert.Equal(t, seltraceerrors.CodeInvalidArgument, toResponse(err).Error)
}

func TestXPathLiteralWithBothQuotes(t *testing.T) {
	assert.Equal(t, `concat('say "hi" it', "'", 's')`, xpathLiteral(`say "hi" it's`))
}

func TestToResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no such element", seltraceerrors.NewNoSuchElementError("no such element: x", nil), seltraceerrors.CodeNoSuchElement},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), codeTimeout},
		{"driver error", seltraceerrors.NewDriverError(codeNoSuchAlert, "no such alert", nil), codeNoSuchAlert},
		{"generic", errors.New("boom"), seltraceerrors.CodeUnknownError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, toResponse(tc.err).Error)
		})
	}
}

func TestIsConnectionLoss(t *testing.T) {
	assert.True(t, isConnectionLoss(fmt.Errorf("read: %w", io.EOF)))
	assert.False(t, isConnectionLoss(errors.New("javascript exception")))
}

func TestScriptFunctions(t *testing.T) {
	assert.Equal(t, "function() {\nreturn 1;\n}", scriptFunction("return 1;"))
	async := asyncScriptFunction("arguments[0](42);")
	assert.Contains(t, async, "args.push(resolve)")
	assert.Contains(t, async, "arguments[0](42);")
}
