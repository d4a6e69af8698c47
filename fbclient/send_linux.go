//go:build linux
// +build linux

// File: fbclient/send_linux.go
// Author: corenet contributors
// License: Apache-2.0

package fbclient

import "golang.org/x/sys/unix"

// sendNoSignal sends payload with MSG_NOSIGNAL so a peer that has
// closed its end raises EPIPE through the normal error path instead of
// delivering SIGPIPE to the process.
func sendNoSignal(fd int, payload []byte) (int, error) {
	err := unix.Send(fd, payload, unix.MSG_NOSIGNAL)
	if err != nil {
		return 0, err
	}
	return len(payload), nil
}

// suppressSIGPIPE is a no-op on Linux; MSG_NOSIGNAL is passed per-send
// instead of being set once on the socket.
func suppressSIGPIPE(fd int) error {
	return nil
}
