// Package clock wraps benbjohnson/clock so the forwarding machine and the
// fragment reassembler can be driven by a virtual clock in tests instead of
// sleeping in wall-clock time.
package clock

import "github.com/benbjohnson/clock"

// Clock is the subset of benbjohnson/clock.Clock the rest of this module
// depends on. Production code takes clock.New(); tests take clock.NewMock().
type Clock = clock.Clock

// Timer is the handle returned by AfterFunc, matching the Design Notes'
// call for "a single Timer abstraction (schedule, cancel)". Clock.AfterFunc
// returns *clock.Timer, and callers compare their stored handle against nil,
// so this aliases the pointer type rather than the struct.
type Timer = *clock.Timer

// New returns the real wall-clock implementation.
func New() Clock {
	return clock.New()
}

// Mock is re-exported so tests can advance time deterministically without
// importing benbjohnson/clock directly.
type Mock = clock.Mock

// NewMock returns a virtual clock frozen at its zero time.
func NewMock() *Mock {
	return clock.NewMock()
}
