// Package ekos listens for finished exposures on the KStars Ekos D-Bus
// interface.
package ekos

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"

	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
)

// KStars D-Bus names
const (
	CapturePath      = dbus.ObjectPath("/KStars/Ekos/Capture")
	CaptureInterface = "org.kde.kstars.Ekos.Capture"
	CaptureComplete  = "captureComplete"
)

var (
	// ErrDisconnected is returned when the bus connection goes away
	ErrDisconnected = errors.New("D-Bus connection closed")

	// ErrUnexpectedSignal is returned for signals that are not captureComplete
	ErrUnexpectedSignal = errors.New("unexpected D-Bus signal")
)

// Publisher receives decoded capture events
type Publisher interface {
	PublishCapture(ev capture.Event)
}

// Source forwards captureComplete signals to a Publisher
type Source struct {
	conn      *dbus.Conn
	publisher Publisher
}

// ConnectSessionBus opens the session bus KStars runs on
func ConnectSessionBus() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn, nil
}

// NewSource creates a source reading signals from conn
func NewSource(conn *dbus.Conn, publisher Publisher) *Source {
	return &Source{conn: conn, publisher: publisher}
}

func matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(CapturePath),
		dbus.WithMatchInterface(CaptureInterface),
		dbus.WithMatchMember(CaptureComplete),
	}
}

// Run subscribes to captureComplete and publishes every event until ctx is
// done or the connection closes
func (s *Source) Run(ctx context.Context) error {
	if err := s.conn.AddMatchSignal(matchOptions()...); err != nil {
		return fmt.Errorf("failed to subscribe to %s.%s: %w", CaptureInterface, CaptureComplete, err)
	}
	defer func() {
		_ = s.conn.RemoveMatchSignal(matchOptions()...)
	}()

	signals := make(chan *dbus.Signal, 64)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	log.Printf("✓ Listening for %s.%s on %s", CaptureInterface, CaptureComplete, CapturePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return ErrDisconnected
			}
			ev, err := ParseSignal(sig)
			if errors.Is(err, ErrUnexpectedSignal) {
				continue
			}
			if err != nil {
				log.Printf("Ignoring malformed %s signal: %v", CaptureComplete, err)
				continue
			}
			s.publisher.PublishCapture(ev)
		}
	}
}

// ParseSignal decodes a captureComplete signal
func ParseSignal(sig *dbus.Signal) (capture.Event, error) {
	if sig == nil || sig.Name != CaptureInterface+"."+CaptureComplete {
		return capture.Event{}, ErrUnexpectedSignal
	}
	if len(sig.Body) == 0 {
		return capture.Event{}, fmt.Errorf("empty signal body")
	}
	info, ok := sig.Body[0].(map[string]dbus.Variant)
	if !ok {
		return capture.Event{}, fmt.Errorf("signal body is %T, want a{sv}", sig.Body[0])
	}
	return EventFromMap(info)
}

// EventFromMap converts the a{sv} payload. Missing numeric fields default to
// -1, which leaves a missing type filtered out and a missing hfr unknown.
func EventFromMap(info map[string]dbus.Variant) (capture.Event, error) {
	ev := capture.Event{
		Type:      -1,
		HFR:       capture.UnknownHFR,
		StarCount: -1,
		Median:    -1,
	}

	if v, ok := info["filename"]; ok {
		name, ok := v.Value().(string)
		if !ok {
			return ev, fmt.Errorf("filename is %s, want string", v.Signature())
		}
		ev.Filename = name
	}
	if ev.Filename == "" {
		return ev, fmt.Errorf("missing filename")
	}

	if v, ok := info["type"]; ok {
		n, err := intValue(v)
		if err != nil {
			return ev, fmt.Errorf("type: %w", err)
		}
		ev.Type = capture.FrameType(n)
	}
	if v, ok := info["starCount"]; ok {
		n, err := intValue(v)
		if err != nil {
			return ev, fmt.Errorf("starCount: %w", err)
		}
		ev.StarCount = int(n)
	}
	if v, ok := info["median"]; ok {
		f, err := floatValue(v)
		if err != nil {
			return ev, fmt.Errorf("median: %w", err)
		}
		ev.Median = f
	}
	if v, ok := info["hfr"]; ok {
		f, err := floatValue(v)
		if err != nil {
			return ev, fmt.Errorf("hfr: %w", err)
		}
		ev.HFR = f
	}

	return ev, nil
}

func intValue(v dbus.Variant) (int64, error) {
	switch n := v.Value().(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case byte:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %s", v.Signature())
	}
}

func floatValue(v dbus.Variant) (float64, error) {
	if f, ok := v.Value().(float64); ok {
		return f, nil
	}
	n, err := intValue(v)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}
