//go:build linux
// +build linux

// File: eventqueue/eventqueue_linux.go
// Author: corenet contributors
// License: Apache-2.0

package eventqueue

import (
	"time"

	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
)

// epollQueue multiplexes readiness over a single epoll instance.
type epollQueue struct {
	epfd       int
	listenerFd int
}

// New constructs the Linux backend, an epoll instance with no
// descriptors registered yet.
func New() (Queue, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fberrors.Wrap(fberrors.ServerCreation, "epoll_create1 failed", err)
	}
	return &epollQueue{epfd: epfd, listenerFd: -1}, nil
}

func (q *epollQueue) AttachListener(fd int) error {
	if err := validateListenerFD(fd); err != nil {
		return err
	}
	if err := q.register(fd); err != nil {
		return err
	}
	q.listenerFd = fd
	return nil
}

func (q *epollQueue) AddClient(fd int) error {
	if fd < 0 {
		return fberrors.New(fberrors.InvalidArgument, "client file descriptor is invalid")
	}
	return q.register(fd)
}

func (q *epollQueue) register(fd int) error {
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(q.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fberrors.Wrap(fberrors.ServerRuntime, "epoll_ctl add failed", err)
	}
	return nil
}

func (q *epollQueue) RemoveClient(fd int) error {
	err := unix.EpollCtl(q.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fberrors.Wrap(fberrors.ServerRuntime, "epoll_ctl del failed", err)
	}
	return nil
}

func (q *epollQueue) Poll() ([]Event, error) {
	return q.wait(-1)
}

func (q *epollQueue) PollWithDeadline(timeoutMs int) ([]Event, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	remaining := timeoutMs
	for {
		events, err := q.wait(remaining)
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

// wait performs a single epoll_wait call, retries on EINTR, and
// deregisters any descriptor at or below standardStreamFDMax as
// spurious instead of surfacing it to the caller.
func (q *epollQueue) wait(timeoutMs int) ([]Event, error) {
	raw := make([]unix.EpollEvent, MaxEvents)
	var n int
	var err error
	for {
		n, err = unix.EpollWait(q.epfd, raw, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		return nil, fberrors.Wrap(fberrors.ServerRuntime, "epoll_wait failed", err)
	}
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd <= standardStreamFDMax {
			_ = q.RemoveClient(fd)
			continue
		}
		errored := raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0
		events = append(events, Event{Fd: fd, Error: errored})
	}
	return events, nil
}

func (q *epollQueue) HasError(ev Event) bool {
	return ev.Error
}

func (q *epollQueue) IsListenerEvent(ev Event) bool {
	return ev.Fd == q.listenerFd
}

func (q *epollQueue) IsClientEvent(ev Event) bool {
	return ev.Fd != q.listenerFd
}

func (q *epollQueue) PeerOf(ev Event) int {
	return ev.Fd
}

func (q *epollQueue) Close() error {
	return unix.Close(q.epfd)
}
