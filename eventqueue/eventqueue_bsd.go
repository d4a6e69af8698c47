//go:build darwin || freebsd || netbsd || openbsd || dragonfly
// +build darwin freebsd netbsd openbsd dragonfly

// File: eventqueue/eventqueue_bsd.go
// Author: corenet contributors
// License: Apache-2.0

package eventqueue

import (
	"time"

	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
)

// kqueueQueue multiplexes readiness over a single kqueue instance.
type kqueueQueue struct {
	kq         int
	listenerFd int
}

// New constructs the BSD/Darwin backend, a kqueue instance with no
// descriptors registered yet.
func New() (Queue, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fberrors.Wrap(fberrors.ServerCreation, "kqueue failed", err)
	}
	return &kqueueQueue{kq: kq, listenerFd: -1}, nil
}

func (q *kqueueQueue) AttachListener(fd int) error {
	if err := validateListenerFD(fd); err != nil {
		return err
	}
	if err := q.register(fd); err != nil {
		return err
	}
	q.listenerFd = fd
	return nil
}

func (q *kqueueQueue) AddClient(fd int) error {
	if fd < 0 {
		return fberrors.New(fberrors.InvalidArgument, "client file descriptor is invalid")
	}
	return q.register(fd)
}

func (q *kqueueQueue) register(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE},
	}
	if _, err := unix.Kevent(q.kq, changes, nil, nil); err != nil {
		return fberrors.Wrap(fberrors.ServerRuntime, "kevent register failed", err)
	}
	return nil
}

func (q *kqueueQueue) RemoveClient(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
	}
	if _, err := unix.Kevent(q.kq, changes, nil, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fberrors.Wrap(fberrors.ServerRuntime, "kevent remove failed", err)
	}
	return nil
}

func (q *kqueueQueue) Poll() ([]Event, error) {
	return q.wait(nil)
}

func (q *kqueueQueue) PollWithDeadline(timeoutMs int) ([]Event, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	remaining := timeoutMs
	for {
		ts := msToTimespec(remaining)
		events, err := q.wait(&ts)
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			return events, nil
		}
		remaining = int(time.Until(deadline) / time.Millisecond)
		if remaining <= 0 {
			return events, nil
		}
	}
}

func msToTimespec(ms int) unix.Timespec {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	return unix.NsecToTimespec(d.Nanoseconds())
}

// wait performs a single kevent call, retries on EINTR, and
// deregisters any descriptor at or below standardStreamFDMax as
// spurious instead of surfacing it to the caller. A nil timeout blocks
// indefinitely.
func (q *kqueueQueue) wait(timeout *unix.Timespec) ([]Event, error) {
	raw := make([]unix.Kevent_t, MaxEvents)
	var n int
	var err error
	for {
		n, err = unix.Kevent(q.kq, nil, raw, timeout)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		return nil, fberrors.Wrap(fberrors.ServerRuntime, "kevent wait failed", err)
	}
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Ident)
		if fd <= standardStreamFDMax {
			_ = q.RemoveClient(fd)
			continue
		}
		errored := raw[i].Flags&unix.EV_ERROR != 0 || raw[i].Flags&unix.EV_EOF != 0
		events = append(events, Event{Fd: fd, Error: errored})
	}
	return events, nil
}

func (q *kqueueQueue) HasError(ev Event) bool {
	return ev.Error
}

func (q *kqueueQueue) IsListenerEvent(ev Event) bool {
	return ev.Fd == q.listenerFd
}

func (q *kqueueQueue) IsClientEvent(ev Event) bool {
	return ev.Fd != q.listenerFd
}

func (q *kqueueQueue) PeerOf(ev Event) int {
	return ev.Fd
}

func (q *kqueueQueue) Close() error {
	return unix.Close(q.kq)
}
