// Package telemetry provides an optional, best-effort observer the
// link-layer engine can report events to. It is never on the
// correctness fast path: an Observer's own failures are logged and
// dropped, never surfaced as link-layer errors.
package telemetry

// Observer receives link-layer events. Implementations must not block
// the caller for any meaningful amount of time.
type Observer interface {
	OnEvent(name string, fields map[string]any)
}

// Noop is the default, zero-cost Observer used when telemetry is
// disabled.
type Noop struct{}

func (Noop) OnEvent(string, map[string]any) {}
