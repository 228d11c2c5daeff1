// Package events carries capture events from their sources to the uploader.
package events

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
)

// TopicCaptureComplete is published once per finished exposure
const TopicCaptureComplete = "capture:complete"

// Bus is an in-process, synchronous capture event bus. Handlers run on the
// publisher's goroutine, so they must not block.
type Bus struct {
	bus evbus.Bus
}

// New creates an empty bus
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// PublishCapture delivers ev to every capture handler
func (b *Bus) PublishCapture(ev capture.Event) {
	b.bus.Publish(TopicCaptureComplete, ev)
}

// OnCapture subscribes fn to capture events
func (b *Bus) OnCapture(fn func(capture.Event)) error {
	return b.bus.Subscribe(TopicCaptureComplete, fn)
}

// OffCapture removes a handler added with OnCapture
func (b *Bus) OffCapture(fn func(capture.Event)) error {
	return b.bus.Unsubscribe(TopicCaptureComplete, fn)
}

// HasHandlers reports whether anything listens for captures
func (b *Bus) HasHandlers() bool {
	return b.bus.HasCallback(TopicCaptureComplete)
}
