//go:build darwin || freebsd || netbsd || openbsd || dragonfly
// +build darwin freebsd netbsd openbsd dragonfly

// File: fbclient/send_bsd.go
// Author: corenet contributors

package fbclient

import "golang.org/x/sys/unix"

// sendNoSignal sends payload with SIGPIPE suppressed. These platforms
// have no MSG_NOSIGNAL send flag; SO_NOSIGPIPE is set on the socket
// once, at connect time, instead.
func sendNoSignal(fd int, payload []byte) (int, error) {
	err := unix.Send(fd, payload, 0)
	if err != nil {
		return 0, err
	}
	return len(payload), nil
}

// suppressSIGPIPE sets SO_NOSIGPIPE on fd; called right after connect.
func suppressSIGPIPE(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
