//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd,!dragonfly

// File: fbclient/send_stub.go
// Author: corenet contributors
// License: Apache-2.0

package fbclient

import fberrors "github.com/fbnetwork/corenet/errors"

func sendNoSignal(fd int, payload []byte) (int, error) {
	return 0, fberrors.New(fberrors.ClientCreation, "fbclient: this platform is not supported")
}

func suppressSIGPIPE(fd int) error {
	return fberrors.New(fberrors.ClientCreation, "fbclient: this platform is not supported")
}
