package events

// Kind separates state-changing commands from read-only ones.
type Kind int

const (
	// Action commands change browser or session state and advance the sequence.
	Action Kind = iota
	// Gather commands only read state and reuse the current sequence number.
	Gather
)

func (k Kind) String() string {
	if k == Gather {
		return "gather"
	}
	return "action"
}

// Command identifies an instrumented operation by its long name.
type Command string

const (
	DriverGet                Command = "webDriver.get"
	DriverGetCurrentURL      Command = "webDriver.getCurrentUrl"
	DriverGetTitle           Command = "webDriver.getTitle"
	DriverGetPageSource      Command = "webDriver.getPageSource"
	DriverFindElement        Command = "webDriver.findElement"
	DriverFindElements       Command = "webDriver.findElements"
	DriverExecuteScript      Command = "webDriver.executeScript"
	DriverExecuteAsyncScript Command = "webDriver.executeAsyncScript"
	DriverClose              Command = "webDriver.close"
	DriverQuit               Command = "webDriver.quit"
	DriverGetWindowHandle    Command = "webDriver.getWindowHandle"
	DriverGetWindowHandles   Command = "webDriver.getWindowHandles"
	DriverGetScreenshotAs    Command = "webDriver.getScreenshotAs"
	NavigationBack           Command = "navigation.back"
	NavigationForward        Command = "navigation.forward"
	NavigationRefresh        Command = "navigation.refresh"
	SwitchToWindow           Command = "targetLocator.window"
	SwitchToFrame            Command = "targetLocator.frame"
	SwitchToParentFrame      Command = "targetLocator.parentFrame"
	SwitchToDefaultContent   Command = "targetLocator.defaultContent"
	SwitchToActiveElement    Command = "targetLocator.activeElement"
	OptionsAddCookie         Command = "options.addCookie"
	OptionsGetCookies        Command = "options.getCookies"
	OptionsDeleteCookieNamed Command = "options.deleteCookieNamed"
	OptionsDeleteAllCookies  Command = "options.deleteAllCookies"
	AlertAccept              Command = "alert.accept"
	AlertDismiss             Command = "alert.dismiss"
	AlertGetText             Command = "alert.getText"
	AlertSendKeys            Command = "alert.sendKeys"
	ElementClick             Command = "webElement.click"
	ElementSubmit            Command = "webElement.submit"
	ElementSendKeys          Command = "webElement.sendKeys"
	ElementClear             Command = "webElement.clear"
	ElementGetAttribute      Command = "webElement.getAttribute"
	ElementGetText           Command = "webElement.getText"
	ElementGetTagName        Command = "webElement.getTagName"
	ElementIsDisplayed       Command = "webElement.isDisplayed"
	ElementIsEnabled         Command = "webElement.isEnabled"
	ElementIsSelected        Command = "webElement.isSelected"
	ElementGetCSSValue       Command = "webElement.getCssValue"
	ElementGetRect           Command = "webElement.getRect"
	ElementGetScreenshotAs   Command = "webElement.getScreenshotAs"
	ElementFindElement       Command = "webElement.findElement"
	ElementFindElements      Command = "webElement.findElements"
)

var commandKinds = map[Command]Kind{
	DriverGet:                Action,
	DriverGetCurrentURL:      Gather,
	DriverGetTitle:           Gather,
	DriverGetPageSource:      Gather,
	DriverFindElement:        Gather,
	DriverFindElements:       Gather,
	DriverExecuteScript:      Action,
	DriverExecuteAsyncScript: Action,
	DriverClose:              Action,
	DriverQuit:               Action,
	DriverGetWindowHandle:    Gather,
	DriverGetWindowHandles:   Gather,
	DriverGetScreenshotAs:    Gather,
	NavigationBack:           Action,
	NavigationForward:        Action,
	NavigationRefresh:        Action,
	SwitchToWindow:           Action,
	SwitchToFrame:            Action,
	SwitchToParentFrame:      Action,
	SwitchToDefaultContent:   Action,
	SwitchToActiveElement:    Gather,
	OptionsAddCookie:         Action,
	OptionsGetCookies:        Gather,
	OptionsDeleteCookieNamed: Action,
	OptionsDeleteAllCookies:  Action,
	AlertAccept:              Action,
	AlertDismiss:             Action,
	AlertGetText:             Gather,
	AlertSendKeys:            Action,
	ElementClick:             Action,
	ElementSubmit:            Action,
	ElementSendKeys:          Action,
	ElementClear:             Action,
	ElementGetAttribute:      Gather,
	ElementGetText:           Gather,
	ElementGetTagName:        Gather,
	ElementIsDisplayed:       Gather,
	ElementIsEnabled:         Gather,
	ElementIsSelected:        Gather,
	ElementGetCSSValue:       Gather,
	ElementGetRect:           Gather,
	ElementGetScreenshotAs:   Gather,
	ElementFindElement:       Gather,
	ElementFindElements:      Gather,
}

// Kind returns whether c is an Action or a Gather command. Unknown commands
// are treated as actions.
func (c Command) Kind() Kind {
	if k, ok := commandKinds[c]; ok {
		return k
	}
	return Action
}

// Valid reports whether c belongs to the instrumented command set.
func (c Command) Valid() bool {
	_, ok := commandKinds[c]
	return ok
}

func (c Command) String() string { return string(c) }

// Commands returns every instrumented command.
func Commands() []Command {
	out := make([]Command, 0, len(commandKinds))
	for c := range commandKinds {
		out = append(out, c)
	}
	return out
}
