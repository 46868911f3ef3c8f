// Package scheduler plays a touch timeline against a device transport.
//
// A Scheduler owns one Session. Run walks the session through
// idle -> active -> finished, or to cancelled on interrupt, transport
// failure or a failed precondition. While active it polls the session
// clock,
//
//	now = elapsed - BaseDelay + offset
//
// and dispatches every group whose instant is at or before now, in
// timeline order, exactly once. The offset belongs to the calibration
// channel, which runs on its own goroutine for the lifetime of the
// session; the scheduler only reads it. Late groups are fired as soon as
// they are noticed and nothing is dropped.
package scheduler
