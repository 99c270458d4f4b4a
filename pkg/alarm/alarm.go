// Package alarm implements the "OS-level interval alarm" abstraction
// called out in the protocol's design notes: arm a bound on a wait,
// and let the waiting loop poll whether it has fired. Built on
// time.Timer/time.AfterFunc rather than a real signal, so the same code
// runs unmodified on every platform go.bug.st/serial supports.
package alarm

import (
	"sync"
	"sync/atomic"
	"time"
)

// Alarm is a single-owner, idempotent countdown. It is not meant to be
// shared across goroutines beyond the happens-before relationship
// established by its own timer callback.
type Alarm struct {
	mu      sync.Mutex
	timer   *time.Timer
	expired atomic.Bool
	fires   atomic.Int64
}

// New returns a disarmed Alarm.
func New() *Alarm {
	return &Alarm{}
}

// Arm cancels any pending timer and starts a new one for d. Expired
// reports false until it fires (or until the next Arm/Cancel).
func (a *Alarm) Arm(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.expired.Store(false)
	a.timer = time.AfterFunc(d, func() {
		a.expired.Store(true)
		a.fires.Add(1)
	})
}

// Cancel stops any pending timer without it ever firing. Equivalent to
// arming for zero seconds in the source protocol.
func (a *Alarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.expired.Store(false)
}

// Expired reports whether the armed duration has elapsed.
func (a *Alarm) Expired() bool {
	return a.expired.Load()
}

// Fires returns the number of times this Alarm has fired. The engine
// counts timeouts in pkg/stats itself and does not read this value.
func (a *Alarm) Fires() int64 {
	return a.fires.Load()
}
