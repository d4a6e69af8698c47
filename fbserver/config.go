// File: fbserver/config.go
// Author: corenet contributors

package fbserver

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fbnetwork/corenet/netconst"
)

const defaultReadTimeout = 60 * time.Second

// Config holds the construction-time parameters for a Server.
type Config struct {
	Domain     netconst.Domain
	Port       int
	Path       string // LOCAL only
	Backlog    int
	ReadTimeout time.Duration
	Logger     *logrus.Logger
}

// DefaultConfig returns a Config with the default 60s read timeout and
// a standard logrus.Logger at Info level.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout: defaultReadTimeout,
		Logger:      logrus.StandardLogger(),
	}
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithLogger overrides the server's logrus.Logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithKeepAlive toggles SO_KEEPALIVE on the listening socket when
// StartServer creates it; equivalent to calling SetServerKeepAlive after
// StartServer, except that a setsockopt failure is ignored.
func WithKeepAlive(enabled bool) Option {
	return func(s *Server) {
		s.pendingKeepAlive = &enabled
	}
}

// NewServerFromConfig builds a Server from a Config batch rather than
// positional arguments, for callers that already assemble one (e.g.
// from a parsed flag set or file). cfg.Domain selects IPv4/IPv6/Local
// exactly as the positional constructors do.
func NewServerFromConfig(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var (
		s   *Server
		err error
	)
	if cfg.Domain == netconst.Local {
		s, err = NewUnixServer(cfg.Path, cfg.Backlog, opts...)
	} else {
		s, err = NewServer(cfg.Domain, cfg.Port, cfg.Backlog, opts...)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		s.logger = cfg.Logger
	}
	if cfg.ReadTimeout > 0 {
		if err := s.SetTimeout(cfg.ReadTimeout); err != nil {
			return nil, err
		}
	}
	return s, nil
}
