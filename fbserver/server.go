// File: fbserver/server.go
// Author: corenet contributors
// License: Apache-2.0
//
// Package fbserver implements the connection-accepting half of the
// networking core: bind/listen/accept over IPv4, IPv6 or a UNIX-domain
// socket, a dense client-id registry that compacts on disconnect, and
// the three bulk-read termination policies shared with fbclient.
package fbserver

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
	"github.com/fbnetwork/corenet/eventqueue"
	"github.com/fbnetwork/corenet/netconst"
	"github.com/fbnetwork/corenet/sysutil"
)

// clientSlot is one entry in the dense client registry. fd == -1 marks
// a freed slot awaiting compaction.
type clientSlot struct {
	fd          int
	peer        addr
	data        []byte
	connectedAt time.Time
}

// Server multiplexes many clients over a single readiness queue. Every
// mutable field group is guarded by its own RWMutex rather than one
// global lock, so independent operations (e.g. SetTimeout during a bulk
// read, or IsServerOnline while AcceptClient runs) don't serialize
// against each other. AcceptClient holds the client registry lock while
// it waits in accept, so calls that look up a client id wait for it.
type Server struct {
	logger *logrus.Logger

	listenMu  sync.RWMutex
	listenFD  int
	domain    netconst.Domain
	bindAddr  addr
	backlog   int
	online    bool
	startTime time.Time
	startDate string
	queue     eventqueue.Queue

	clientsMu sync.RWMutex
	slots     []clientSlot

	timeoutMu   sync.RWMutex
	readTimeout time.Duration

	pendingMu sync.Mutex
	pending   *queue.Queue

	pendingKeepAlive *bool
}

// NewServer constructs an IPv4 or IPv6 server. It refuses netconst.Local;
// use NewUnixServer for UNIX-domain sockets.
func NewServer(domain netconst.Domain, port, backlog int, opts ...Option) (*Server, error) {
	if domain == netconst.Local {
		return nil, fberrors.New(fberrors.InvalidDomain, "use NewUnixServer for the Local domain")
	}
	return newServer(domain, port, "", backlog, opts...)
}

// NewUnixServer constructs a server bound to a filesystem socket path.
func NewUnixServer(path string, backlog int, opts ...Option) (*Server, error) {
	return newServer(netconst.Local, 0, path, backlog, opts...)
}

func newServer(domain netconst.Domain, port int, path string, backlog int, opts ...Option) (*Server, error) {
	if backlog <= 0 {
		return nil, fberrors.New(fberrors.InvalidArgument, "backlog must be > 0")
	}
	bindAddr, err := wildcardAddr(domain, port, path)
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:      logrus.StandardLogger(),
		listenFD:    -1,
		domain:      domain,
		bindAddr:    bindAddr,
		backlog:     backlog,
		readTimeout: defaultReadTimeout,
		pending:     queue.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartServer creates the listening socket in the server's domain,
// enables SO_REUSEADDR, binds the family-specific address (unlinking
// any stale socket file first for Local), attaches a fresh EventQueue
// to it, and marks the server online.
func (s *Server) StartServer() error {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	family, err := socketFamily(s.domain)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return fberrors.Wrap(fberrors.ServerCreation, "socket creation failed", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fberrors.Wrap(fberrors.ServerCreation, "setting SO_REUSEADDR failed", err)
	}

	if s.domain == netconst.Local {
		if err := unix.Unlink(s.bindAddr.Path); err != nil && err != unix.ENOENT {
			unix.Close(fd)
			return fberrors.Wrap(fberrors.ServerCreation, "unlinking stale socket file failed", err)
		}
	}

	sa, err := s.bindAddr.toSockaddr()
	if err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fberrors.Wrap(fberrors.ServerCreation, "bind failed", err)
	}

	q, err := eventqueue.New()
	if err != nil {
		unix.Close(fd)
		return err
	}
	if err := q.AttachListener(fd); err != nil {
		q.Close()
		unix.Close(fd)
		return err
	}

	s.listenFD = fd
	s.queue = q
	s.online = true
	s.startTime = time.Now()
	s.startDate = sysutil.CurrentDate()

	if s.pendingKeepAlive != nil {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(*s.pendingKeepAlive))
	}

	s.logger.WithFields(logrus.Fields{"domain": s.domain.String(), "backlog": s.backlog}).Info("server started")
	return nil
}

// StartListening places the listening socket in accept mode.
func (s *Server) StartListening() error {
	s.listenMu.RLock()
	fd := s.listenFD
	backlog := s.backlog
	s.listenMu.RUnlock()

	if err := unix.Listen(fd, backlog); err != nil {
		return fberrors.Wrap(fberrors.ServerRuntime, "listen failed", err)
	}
	return nil
}

// SetServerKeepAlive toggles SO_KEEPALIVE on the listening socket.
func (s *Server) SetServerKeepAlive(enabled bool) error {
	s.listenMu.RLock()
	fd := s.listenFD
	s.listenMu.RUnlock()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(enabled)); err != nil {
		return fberrors.Wrap(fberrors.ServerRuntime, "setting SO_KEEPALIVE failed", err)
	}
	return nil
}

// SetTimeout sets the per-read budget used by every blocking read.
func (s *Server) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fberrors.New(fberrors.InvalidArgument, "timeout must be >= 0")
	}
	s.timeoutMu.Lock()
	defer s.timeoutMu.Unlock()
	s.readTimeout = d
	return nil
}

func (s *Server) getTimeout() time.Duration {
	s.timeoutMu.RLock()
	defer s.timeoutMu.RUnlock()
	return s.readTimeout
}

// IsServerOnline reports whether StartServer has run and StopServer
// has not.
func (s *Server) IsServerOnline() bool {
	s.listenMu.RLock()
	defer s.listenMu.RUnlock()
	return s.online
}

// GetLifeTime returns how long the server has been online.
func (s *Server) GetLifeTime() time.Duration {
	s.listenMu.RLock()
	defer s.listenMu.RUnlock()
	if !s.online {
		return 0
	}
	return time.Since(s.startTime)
}

// GetStartDate returns the calendar date StartServer brought the
// server online on, formatted as "DD.MM.YYYY" ("" if never started).
func (s *Server) GetStartDate() string {
	s.listenMu.RLock()
	defer s.listenMu.RUnlock()
	return s.startDate
}

// GetCurrentlyConnectedClientsCount returns the number of live clients,
// independent of whether a compaction pass has run recently: a slot
// whose peer has already disconnected is not counted, although only the
// next compaction frees it.
func (s *Server) GetCurrentlyConnectedClientsCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	count := 0
	for _, slot := range s.slots {
		if slot.fd >= 0 && !isDisconnected(slot.fd) {
			count++
		}
	}
	return count
}

// GetClientIPAddress returns the textual remote address of clientID
// ("localhost" for Local-domain peers, which carry a path, not an IP).
func (s *Server) GetClientIPAddress(clientID int) (string, error) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if clientID < 0 || clientID >= len(s.slots) || s.slots[clientID].fd < 0 {
		return "", fberrors.New(fberrors.InvalidArgument, "unknown client id")
	}
	if s.slots[clientID].peer.Domain == netconst.Local {
		return "localhost", nil
	}
	return s.slots[clientID].peer.IP, nil
}

// GetData returns the last payload stored for clientID by a bulk read.
func (s *Server) GetData(clientID int) ([]byte, error) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if clientID < 0 || clientID >= len(s.slots) || s.slots[clientID].fd < 0 {
		return nil, fberrors.New(fberrors.InvalidArgument, "unknown client id")
	}
	return s.slots[clientID].data, nil
}

func (s *Server) clientFD(clientID int) (int, error) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if clientID < 0 || clientID >= len(s.slots) || s.slots[clientID].fd < 0 {
		return 0, fberrors.New(fberrors.InvalidArgument, "unknown client id")
	}
	return s.slots[clientID].fd, nil
}

// CloseClient closes clientID's descriptor. A descriptor that is
// already bad is tolerated silently; any other close failure raises
// ServerRuntime.
func (s *Server) CloseClient(clientID int) error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if clientID < 0 || clientID >= len(s.slots) || s.slots[clientID].fd < 0 {
		return fberrors.New(fberrors.InvalidArgument, "unknown client id")
	}
	fd := s.slots[clientID].fd
	if err := unix.Close(fd); err != nil && err != unix.EBADF {
		return fberrors.Wrap(fberrors.ServerRuntime, "closing client failed", err)
	}
	s.slots[clientID].fd = -1
	return nil
}

// SendData writes payload to clientID's descriptor in a single write.
func (s *Server) SendData(clientID int, payload []byte) error {
	if len(payload) == 0 {
		return fberrors.New(fberrors.InvalidArgument, "payload cannot be empty")
	}
	fd, err := s.clientFD(clientID)
	if err != nil {
		return err
	}
	n, err := unix.Write(fd, payload)
	if err != nil {
		return fberrors.Wrap(fberrors.ServerRuntime, "write failed", err)
	}
	if n != len(payload) {
		return fberrors.New(fberrors.ServerRuntime, "short write")
	}
	return nil
}

// ReadExact reads exactly n bytes from clientID, storing them as the
// client's data buffer.
func (s *Server) ReadExact(clientID, n int) error {
	if n <= 0 {
		return fberrors.New(fberrors.InvalidArgument, "n must be > 0")
	}
	data, err := s.bulkRead(clientID, readExactPredicate(n))
	if err != nil {
		return err
	}
	return s.storeData(clientID, data)
}

// ReadUntil reads until delim is seen, storing the prefix through the
// first occurrence of delim.
func (s *Server) ReadUntil(clientID int, delim []byte) error {
	if len(delim) == 0 {
		return fberrors.New(fberrors.InvalidArgument, "delimiter cannot be empty")
	}
	data, err := s.bulkRead(clientID, readUntilPredicate(delim))
	if err != nil {
		return err
	}
	return s.storeData(clientID, data)
}

// ReadUntilNth reads until delim has occurred n times, storing the
// buffer through the end of the n-th occurrence.
func (s *Server) ReadUntilNth(clientID int, delim []byte, n int) error {
	if len(delim) == 0 || n <= 0 {
		return fberrors.New(fberrors.InvalidArgument, "delimiter cannot be empty and n must be > 0")
	}
	data, err := s.bulkRead(clientID, readUntilNthPredicate(delim, n))
	if err != nil {
		return err
	}
	return s.storeData(clientID, data)
}

func (s *Server) storeData(clientID int, data []byte) error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if clientID < 0 || clientID >= len(s.slots) {
		return fberrors.New(fberrors.InvalidArgument, "unknown client id")
	}
	s.slots[clientID].data = data
	return nil
}

// StopServer closes every live peer descriptor then the listener,
// flips online to false, and zeros the start timestamp and date.
func (s *Server) StopServer() error {
	s.clientsMu.Lock()
	for i := range s.slots {
		if s.slots[i].fd >= 0 {
			unix.Close(s.slots[i].fd)
			s.slots[i].fd = -1
		}
	}
	s.clientsMu.Unlock()

	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.queue != nil {
		s.queue.Close()
	}
	if s.listenFD >= 0 {
		unix.Close(s.listenFD)
	}
	s.listenFD = -1
	s.online = false
	s.startTime = time.Time{}
	s.startDate = ""
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
