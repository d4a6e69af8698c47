// File: sysutil/sysutil.go
// Author: corenet contributors
// License: Apache-2.0
//
// Package sysutil collects the small OS-facing helpers the core
// consumes: current date/time stamps, last-OS-error formatting, and
// plain file read/write/env-loading utilities. None of this is
// networking logic; fbserver uses CurrentDate for its start date.
package sysutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	fberrors "github.com/fbnetwork/corenet/errors"
)

// CurrentDate returns today's date as "DD.MM.YYYY", matching the
// original ExtendedSystem::getCurrentDate format.
func CurrentDate() string {
	return time.Now().Format("02.01.2006")
}

// CurrentTime returns the current wall-clock time as "HH:MM:SS",
// matching ExtendedSystem::getCurrentTime.
func CurrentTime() string {
	return time.Now().Format("15:04:05")
}

// CurrentErrnoError formats err the way the original formats
// strerror_r's output: "No error." for a nil cause, otherwise the
// error's own message. Go's syscall/unix errno types already implement
// Error() with the libc message, so there is no strerror_r buffer to
// manage here.
func CurrentErrnoError(err error) string {
	if err == nil {
		return "No error."
	}
	return err.Error()
}

// ReadFile reads the entire contents of path.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fberrors.New(fberrors.InvalidArgument, "file path cannot be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fberrors.Wrap(fberrors.SystemRuntime, "file could not be opened", err)
	}
	return string(data), nil
}

// WriteFile writes data to path, truncating any existing content.
func WriteFile(path, data string) error {
	if path == "" {
		return fberrors.New(fberrors.InvalidArgument, "file path cannot be empty")
	}
	if data == "" {
		return fberrors.New(fberrors.InvalidArgument, "data cannot be empty")
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fberrors.Wrap(fberrors.SystemRuntime, "file could not be opened", err)
	}
	return nil
}

// LoadEnv parses a simple KEY=VALUE file, one assignment per line, and
// calls os.Setenv for each. Lines with an empty key or empty value are
// skipped, matching the original's loadEnvironmentVariables. No
// third-party dotenv loader appears anywhere in the retrieved example
// pack, so this one function is stdlib-only by necessity; see
// DESIGN.md.
func LoadEnv(path string) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" || value == "" {
			continue
		}
		if setErr := os.Setenv(key, value); setErr != nil {
			return fberrors.Wrap(fberrors.SystemRuntime, fmt.Sprintf("setting env var %q failed", key), setErr)
		}
	}
	return nil
}
