package plugin

import (
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
)

// Dependencies are the collaborators handed to listener factories.
// Factories pick what they need; fields may be nil when not configured.
type Dependencies struct {
	Logger             seltracelog.Logger
	Recorder           recorder.TestExecutionRecorder
	Capturer           recorder.ScreenshotCapturer
	CaptureScreenshots bool
	Bus                events.Bus
	Metrics            metrics.RegistryProvider
}

// ListenerFactory creates a listener from its dependencies.
type ListenerFactory func(deps Dependencies) (events.Listener, error)

// Registry maps listener names, as used in configuration, to factories.
type Registry interface {
	// Get retrieves the factory registered under name.
	Get(name string) (ListenerFactory, error)

	// Register associates name with factory. It returns an error if the name
	// is empty, the factory is nil, or the name is already registered.
	Register(name string, factory ListenerFactory) error

	// List returns the registered names in no particular order.
	List() []string
}
