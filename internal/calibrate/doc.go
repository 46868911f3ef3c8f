// Package calibrate implements the live phase adjustment of a playback
// session.
//
// An Offset is the only value shared between the scheduler and the
// calibration goroutine. Channel.Run is that goroutine: it stays parked
// until the session becomes active, throws away anything typed while
// parked, then applies "+", "-" and "0" commands from operator input and
// from Submit (remote control) in arrival order. Channel is the single
// writer of the Offset; the scheduler only calls Load.
package calibrate
