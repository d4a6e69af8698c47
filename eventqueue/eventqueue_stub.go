//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd,!dragonfly

// File: eventqueue/eventqueue_stub.go
// Author: corenet contributors
// License: Apache-2.0

package eventqueue

import fberrors "github.com/fbnetwork/corenet/errors"

// New returns an error on platforms with neither epoll nor kqueue.
func New() (Queue, error) {
	return nil, fberrors.New(fberrors.ServerCreation, "eventqueue: this platform is not supported")
}
