// File: eventqueue/eventqueue.go
// Author: corenet contributors
// License: Apache-2.0
//
// Package eventqueue presents one readiness-multiplexing interface
// over two distinct kernel backends: a Linux epoll instance and a
// BSD-style kqueue (used on darwin/freebsd/netbsd/openbsd/dragonfly).
// fbserver's event loop (GetPendingEvents) is built on top of this
// package; nothing above it needs to know which backend is in play.
// Single-descriptor waits in fbserver and fbclient use select directly.
package eventqueue

import fberrors "github.com/fbnetwork/corenet/errors"

// MaxEvents bounds the number of events returned by a single Poll or
// PollWithDeadline call.
const MaxEvents = 2048

// standardStreamFDMax is the highest file descriptor number reserved
// for stdin/stdout/stderr. Events reported against a descriptor at or
// below this are treated as spurious kernel noise and deregistered.
const standardStreamFDMax = 2

// Event is a single readiness notification, already classified as
// erroring or not by the backend that produced it.
type Event struct {
	Fd    int
	Error bool
}

// Queue is the uniform readiness-multiplexer interface implemented by
// the epoll and kqueue backends (and a stub on unsupported platforms).
type Queue interface {
	// AttachListener registers fd (the server's listening socket) for
	// read-readiness.
	AttachListener(fd int) error
	// AddClient registers a newly accepted client descriptor for
	// read-readiness.
	AddClient(fd int) error
	// RemoveClient deregisters fd. Removing an unknown descriptor is
	// not an error.
	RemoveClient(fd int) error
	// Poll blocks indefinitely and returns the next batch of readiness
	// events, filtered to descriptors above standardStreamFDMax.
	Poll() ([]Event, error)
	// PollWithDeadline blocks at most timeoutMs milliseconds and
	// returns whatever events accumulated by the deadline, which may
	// be empty. It never raises a timeout error; callers test
	// len(events) == 0.
	PollWithDeadline(timeoutMs int) ([]Event, error)
	// HasError reports whether ev carries an error or hangup condition.
	HasError(ev Event) bool
	// IsListenerEvent reports whether ev was raised on the listening
	// descriptor.
	IsListenerEvent(ev Event) bool
	// IsClientEvent reports whether ev was raised on a client
	// descriptor (i.e. not the listener).
	IsClientEvent(ev Event) bool
	// PeerOf extracts the descriptor an event was raised on.
	PeerOf(ev Event) int
	// Close releases the backend's kernel readiness descriptor.
	Close() error
}

// validateListenerFD returns an *errors.Error if fd is not a usable
// descriptor.
func validateListenerFD(fd int) error {
	if fd < 0 {
		return fberrors.New(fberrors.InvalidArgument, "listener file descriptor is invalid")
	}
	return nil
}
