// File: fbserver/compaction.go
// Author: corenet contributors
// License: Apache-2.0

package fbserver

import (
	"time"

	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
)

const peekBufSize = 1

// isDisconnected performs a non-destructive peek on fd. A zero-length
// peek, or any error other than "would block", means the peer is gone.
// EINTR retries the same syscall; EAGAIN/EWOULDBLOCK means the socket
// is still open with nothing queued, so it reports false immediately
// rather than spinning — see DESIGN.md for why this departs from a
// literal transcription of the original's retry loop.
func isDisconnected(fd int) bool {
	buf := make([]byte, peekBufSize)
	for {
		n, _, err := unix.Recvfrom(fd, buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return false
		}
		if err != nil {
			return true
		}
		return n == 0
	}
}

// compact frees disconnected slots and renumbers the remaining live
// clients into [0, n) so ids are dense. Must be called with clientsMu
// held for writing.
func (s *Server) compact() {
	for i := range s.slots {
		if s.slots[i].fd < 0 {
			continue
		}
		if isDisconnected(s.slots[i].fd) {
			_ = s.queue.RemoveClient(s.slots[i].fd)
			unix.Close(s.slots[i].fd)
			s.slots[i].fd = -1
		}
	}

	k := 0
	for i := range s.slots {
		if s.slots[i].fd < 0 {
			continue
		}
		if i != k {
			s.slots[k] = s.slots[i]
		}
		k++
	}
	s.slots = s.slots[:k]
}

// AcceptClient compacts the registry, then accepts one pending
// connection and assigns it the next dense id.
func (s *Server) AcceptClient() (int, error) {
	s.listenMu.RLock()
	listenFD := s.listenFD
	domain := s.domain
	backlog := s.backlog
	s.listenMu.RUnlock()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.compact()

	if len(s.slots) >= backlog {
		return 0, fberrors.New(fberrors.ServerRuntime, "maximum connections reached")
	}

	fd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return 0, fberrors.Wrap(fberrors.ServerRuntime, "accept failed", err)
	}
	peer := fromSockaddr(domain, sa)

	if err := s.queue.AddClient(fd); err != nil {
		unix.Close(fd)
		return 0, err
	}

	s.slots = append(s.slots, clientSlot{fd: fd, peer: peer, connectedAt: time.Now()})
	id := len(s.slots) - 1

	s.logger.WithFields(map[string]any{"clientId": id, "ip": peer.IP}).Debug("client connected")
	return id, nil
}
