// Package device defines the boundary between the capture subsystem and
// the underlying execution runtime. The runtime is treated as a black
// box: the subsystem only relies on the pre/postconditions documented
// here, never on how a lane schedules work internally.
package device

import "context"

// Op is one recorded asynchronous device call. Ops are lane-agnostic:
// they are bound to a concrete lane when the compiled graph is launched,
// which is what allows lane assignments to change between compilations.
type Op func(ctx context.Context) error

// Event is a one-shot cross-lane completion marker. A lane that waits on
// an event blocks until some other lane signals it. Events are
// single-use; a fresh set is created for every launch.
type Event interface {
	// Signal marks the event complete. Signaling twice is undefined.
	Signal()
	// Done returns a channel closed when the event has been signaled.
	Done() <-chan struct{}
}

// Lane is an opaque handle to one hardware execution context. Work
// issued on a lane runs in issue order; work on distinct lanes runs
// concurrently unless ordered through events.
type Lane interface {
	// Async issues op on the lane. During a capture session the op is
	// recorded instead of executed. Outside a session it is enqueued for
	// asynchronous execution.
	Async(op Op)

	// Wait enqueues a barrier: the lane stops draining its queue until
	// ev is signaled. Must not be called inside a capture session.
	Wait(ev Event)

	// Signal enqueues a marker that signals ev once all previously
	// issued work on the lane has completed. Must not be called inside a
	// capture session.
	Signal(ev Event)

	// Index reports the lane's position in the pool it was allocated
	// from. Only meaningful for logging.
	Index() int
}

// Token identifies an open capture session on a lane.
type Token interface{}

// Runtime is the narrow surface the subsystem requires of a device
// context. Implementations must make Lanes, NewEvent and the capture
// protocol safe for use from a single goroutine per Runtime; Sync may be
// called while lanes are executing work issued from other goroutines.
type Runtime interface {
	// Lanes allocates a bounded pool of n lanes owned by the caller.
	Lanes(ctx context.Context, n int) ([]Lane, error)

	// NewEvent creates an unsignaled one-shot event.
	NewEvent() Event

	// BeginCapture opens a capture session on lane. Until EndCapture is
	// called with the returned token, Async calls on the lane are
	// recorded rather than executed. The caller must not alter any other
	// lane-level state while the session is open; violations are not
	// checked and surface only as downstream device errors.
	BeginCapture(lane Lane) (Token, error)

	// EndCapture closes the session and returns the recorded ops in
	// issue order.
	EndCapture(token Token) ([]Op, error)

	// Sync blocks until every lane allocated from this runtime has
	// drained all issued work, then reports the first execution failure,
	// if any, as a *Error.
	Sync(ctx context.Context) error

	// Close releases the runtime's lanes and rejects further use.
	Close() error
}
