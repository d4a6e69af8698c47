// File: fbclient/client.go
// Author: corenet contributors
// License: Apache-2.0
//
// Package fbclient implements the connecting half of the networking
// core: connect over IPv4, IPv6 or a UNIX-domain socket, a send path
// with pre-write readiness selection and broken-pipe suppression, and
// the same three bulk-read termination policies fbserver exposes on
// the accept side.
package fbclient

import (
	"bytes"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
	"github.com/fbnetwork/corenet/netconst"
)

const (
	readBufSize        = 1024
	defaultReadTimeout = 60 * time.Second
)

// Client connects to exactly one remote endpoint over one of the three
// supported domains and mirrors the server's read/write semantics.
type Client struct {
	logger *logrus.Logger

	connMu  sync.RWMutex
	fd      int
	domain  netconst.Domain
	ip      string
	port    int
	path    string
	connected bool

	dataMu sync.RWMutex
	data   []byte

	timeoutMu   sync.RWMutex
	readTimeout time.Duration
}

// New constructs an IPv4/IPv6 client targeting ip:port.
func New(domain netconst.Domain, ip string, port int, opts ...Option) (*Client, error) {
	if domain == netconst.Local {
		return nil, fberrors.New(fberrors.InvalidDomain, "use NewUnix for the Local domain")
	}
	if port < 0 || port > 65535 {
		return nil, fberrors.New(fberrors.InvalidArgument, "port must be in [0, 65535]")
	}
	if ip == "" {
		return nil, fberrors.New(fberrors.InvalidArgument, "ip address cannot be empty")
	}
	c := newClient(domain, opts...)
	c.ip = ip
	c.port = port
	return c, nil
}

// NewUnix constructs a client targeting a UNIX-domain socket path.
func NewUnix(path string, opts ...Option) (*Client, error) {
	if path == "" {
		return nil, fberrors.New(fberrors.InvalidArgument, "path cannot be empty")
	}
	if len(path) > 104 {
		return nil, fberrors.New(fberrors.InvalidArgument, "path exceeds 104 bytes")
	}
	c := newClient(netconst.Local, opts...)
	c.path = path
	return c, nil
}

func newClient(domain netconst.Domain, opts ...Option) *Client {
	c := &Client{
		logger:      logrus.StandardLogger(),
		fd:          -1,
		domain:      domain,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithLogger overrides the client's logrus.Logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// ConnectToServer creates the socket for the client's domain and
// connects it to the configured remote endpoint.
func (c *Client) ConnectToServer() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	family, err := socketFamily(c.domain)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return fberrors.Wrap(fberrors.ClientCreation, "socket creation failed", err)
	}

	sa, err := c.remoteSockaddr()
	if err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return fberrors.Wrap(fberrors.ClientCreation, "connect failed", err)
	}
	if err := suppressSIGPIPE(fd); err != nil {
		unix.Close(fd)
		return fberrors.Wrap(fberrors.ClientCreation, "suppressing SIGPIPE failed", err)
	}

	c.fd = fd
	c.connected = true
	c.logger.WithFields(map[string]any{"domain": c.domain.String()}).Info("connected to server")
	return nil
}

// DisconnectFromServer closes the connection.
func (c *Client) DisconnectFromServer() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.fd < 0 {
		return nil
	}
	if err := unix.Close(c.fd); err != nil {
		return fberrors.Wrap(fberrors.ClientRuntime, "closing the socket failed", err)
	}
	c.fd = -1
	c.connected = false
	return nil
}

// IsConnected reports whether ConnectToServer has succeeded and
// DisconnectFromServer has not run since.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// SetTimeout sets the per-read and per-send readiness budget.
func (c *Client) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fberrors.New(fberrors.InvalidArgument, "timeout must be >= 0")
	}
	c.timeoutMu.Lock()
	defer c.timeoutMu.Unlock()
	c.readTimeout = d
	return nil
}

func (c *Client) getTimeout() time.Duration {
	c.timeoutMu.RLock()
	defer c.timeoutMu.RUnlock()
	return c.readTimeout
}

func (c *Client) fileDescriptor() (int, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.fd < 0 {
		return 0, fberrors.New(fberrors.InvalidArgument, "client is not connected")
	}
	return c.fd, nil
}

// GetData returns the last payload stored by a bulk read.
func (c *Client) GetData() []byte {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.data
}

func (c *Client) storeData(data []byte) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.data = data
}

// SendData waits for write-readiness with the configured timeout,
// checks SO_ERROR to surface an asynchronous connect/socket failure
// early, and sends the full payload with broken-pipe signals
// suppressed (MSG_NOSIGNAL on Linux, SO_NOSIGPIPE on darwin/BSD).
func (c *Client) SendData(payload []byte) error {
	if len(payload) == 0 {
		return fberrors.New(fberrors.InvalidArgument, "payload cannot be empty")
	}
	fd, err := c.fileDescriptor()
	if err != nil {
		return err
	}
	timeout := c.getTimeout()

	ready, err := waitWritable(fd, timeout)
	if err != nil {
		return err
	}
	if soErr, err := socketError(fd); err != nil {
		return err
	} else if soErr != nil {
		return fberrors.Wrap(fberrors.ClientRuntime, "socket error pending", soErr)
	}
	if !ready {
		return fberrors.New(fberrors.ClientTimeout, "timeout reached while sending data")
	}

	for {
		n, err := sendNoSignal(fd, payload)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fberrors.Wrap(fberrors.ClientRuntime, "sending the data failed", err)
		}
		if n != len(payload) {
			return fberrors.New(fberrors.ClientRuntime, "short write")
		}
		return nil
	}
}

func socketError(fd int) (error, error) {
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return nil, fberrors.Wrap(fberrors.ClientRuntime, "error getting socket options", err)
	}
	if soErr != 0 {
		return unix.Errno(soErr), nil
	}
	return nil, nil
}

func waitWritable(fd int, timeout time.Duration) (bool, error) {
	for {
		var set unix.FdSet
		set.Set(fd)
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		n, err := unix.Select(fd+1, nil, &set, nil, &tv)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, fberrors.Wrap(fberrors.ClientRuntime, "select failed", err)
		}
		return n > 0, nil
	}
}

// ReadExact reads exactly n bytes.
func (c *Client) ReadExact(n int) error {
	if n <= 0 {
		return fberrors.New(fberrors.InvalidArgument, "n must be > 0")
	}
	data, err := c.bulkRead(readExactPredicate(n))
	if err != nil {
		return err
	}
	c.storeData(data)
	return nil
}

// ReadUntil reads until delim is seen.
func (c *Client) ReadUntil(delim []byte) error {
	if len(delim) == 0 {
		return fberrors.New(fberrors.InvalidArgument, "delimiter cannot be empty")
	}
	data, err := c.bulkRead(readUntilPredicate(delim))
	if err != nil {
		return err
	}
	c.storeData(data)
	return nil
}

// ReadUntilNth reads until delim has occurred n times.
func (c *Client) ReadUntilNth(delim []byte, n int) error {
	if len(delim) == 0 || n <= 0 {
		return fberrors.New(fberrors.InvalidArgument, "delimiter cannot be empty and n must be > 0")
	}
	data, err := c.bulkRead(readUntilNthPredicate(delim, n))
	if err != nil {
		return err
	}
	c.storeData(data)
	return nil
}

type predicate func(acc []byte) ([]byte, bool)

func readExactPredicate(n int) predicate {
	return func(acc []byte) ([]byte, bool) {
		if len(acc) >= n {
			return acc[:n], true
		}
		return nil, false
	}
}

func readUntilPredicate(delim []byte) predicate {
	return func(acc []byte) ([]byte, bool) {
		idx := bytes.Index(acc, delim)
		if idx < 0 {
			return nil, false
		}
		return acc[:idx+len(delim)], true
	}
}

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

// bulkRead is client-side twin of fbserver's read loop: bounded
// readiness wait, single fixed-size read, predicate test, repeat.
func (c *Client) bulkRead(pred predicate) ([]byte, error) {
	fd, err := c.fileDescriptor()
	if err != nil {
		return nil, err
	}
	timeout := c.getTimeout()
	acc := make([]byte, 0, readBufSize)
	buf := make([]byte, readBufSize)

	for {
		ready, err := waitReadable(fd, timeout)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, fberrors.New(fberrors.ClientTimeout, "read timed out")
		}

		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fberrors.Wrap(fberrors.ClientRuntime, "read failed", err)
		}
		if n == 0 {
			return nil, fberrors.New(fberrors.ClientRuntime, "connection closed")
		}

		acc = append(acc, buf[:n]...)
		if result, done := pred(acc); done {
			return result, nil
		}
	}
}

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
			return false, fberrors.Wrap(fberrors.ClientRuntime, "select failed", err)
		}
		return n > 0, nil
	}
}

// IsDataAvailable probes read-readiness on the server descriptor.
func (c *Client) IsDataAvailable(timeout time.Duration) (bool, error) {
	fd, err := c.fileDescriptor()
	if err != nil {
		return false, err
	}
	return waitReadable(fd, timeout)
}

func socketFamily(domain netconst.Domain) (int, error) {
	switch domain {
	case netconst.IPv4:
		return unix.AF_INET, nil
	case netconst.IPv6:
		return unix.AF_INET6, nil
	case netconst.Local:
		return unix.AF_UNIX, nil
	default:
		return 0, fberrors.New(fberrors.InvalidDomain, "domain must be one of IPv4, IPv6, Local")
	}
}

func (c *Client) remoteSockaddr() (unix.Sockaddr, error) {
	switch c.domain {
	case netconst.IPv4:
		sa := &unix.SockaddrInet4{Port: c.port}
		ip := netIPTo4(c.ip)
		if ip == nil {
			return nil, fberrors.New(fberrors.ClientCreation, "invalid IPv4 address")
		}
		copy(sa.Addr[:], ip)
		return sa, nil
	case netconst.IPv6:
		sa := &unix.SockaddrInet6{Port: c.port}
		ip := netIPTo16(c.ip)
		if ip == nil {
			return nil, fberrors.New(fberrors.ClientCreation, "invalid IPv6 address")
		}
		copy(sa.Addr[:], ip)
		return sa, nil
	case netconst.Local:
		return &unix.SockaddrUnix{Name: c.path}, nil
	default:
		return nil, fberrors.New(fberrors.InvalidDomain, "domain must be one of IPv4, IPv6, Local")
	}
}
