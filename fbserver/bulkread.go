// File: fbserver/bulkread.go
// Author: corenet contributors
// License: Apache-2.0

package fbserver

import (
	"bytes"
	"time"

	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
)

// readBufSize is the fixed per-syscall read buffer used by every bulk
// read variant.
const readBufSize = 1024

// predicate inspects the bytes accumulated so far and reports whether
// the read is complete; when done, it also returns the bytes that
// should actually be stored (truncating whatever trailing bytes the
// termination rule discards).
type predicate func(acc []byte) (result []byte, done bool)

// bulkRead drives the shared loop all three read variants share: wait
// for read-readiness with the configured timeout, issue a single read
// of up to readBufSize bytes, append, test the predicate, and reset
// the timeout budget for the next iteration. EINTR retries the wait;
// a zero-length read or any other read error surfaces as ServerRuntime;
// an exhausted readiness wait surfaces as ServerTimeout.
func (s *Server) bulkRead(clientID int, pred predicate) ([]byte, error) {
	fd, err := s.clientFD(clientID)
	if err != nil {
		return nil, err
	}
	timeout := s.getTimeout()
	acc := make([]byte, 0, readBufSize)
	buf := make([]byte, readBufSize)

	for {
		ready, err := waitReadable(fd, timeout)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, fberrors.New(fberrors.ServerTimeout, "read timed out")
		}

		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fberrors.Wrap(fberrors.ServerRuntime, "read failed", err)
		}
		if n == 0 {
			return nil, fberrors.New(fberrors.ServerRuntime, "connection closed")
		}

		acc = append(acc, buf[:n]...)
		if result, done := pred(acc); done {
			return result, nil
		}
	}
}

// waitReadable blocks on fd's read-readiness for at most timeout,
// retrying on EINTR, and reports whether it became readable before
// the deadline.
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	for {
		var set unix.FdSet
		set.Set(fd)
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		n, err := unix.Select(fd+1, &set, nil, nil, &tv)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, fberrors.Wrap(fberrors.ServerRuntime, "select failed", err)
		}
		return n > 0, nil
	}
}

// readExactPredicate completes once n bytes have accumulated, storing
// exactly n bytes regardless of how many more arrived in the same read.
func readExactPredicate(n int) predicate {
	return func(acc []byte) ([]byte, bool) {
		if len(acc) >= n {
			return acc[:n], true
		}
		return nil, false
	}
}

// readUntilPredicate completes on the first occurrence of delim,
// discarding any bytes received after it in the same syscall; this is
// a documented contract, not an oversight.
func readUntilPredicate(delim []byte) predicate {
	return func(acc []byte) ([]byte, bool) {
		idx := bytes.Index(acc, delim)
		if idx < 0 {
			return nil, false
		}
		return acc[:idx+len(delim)], true
	}
}

// readUntilNthPredicate completes once delim has occurred n times,
// non-overlapping, truncating the stored buffer to the end of the
// n-th match.
func readUntilNthPredicate(delim []byte, n int) predicate {
	return func(acc []byte) ([]byte, bool) {
		count := 0
		pos := 0
		for {
			idx := bytes.Index(acc[pos:], delim)
			if idx < 0 {
				return nil, false
			}
			pos += idx + len(delim)
			count++
			if count == n {
				return acc[:pos], true
			}
		}
	}
}
