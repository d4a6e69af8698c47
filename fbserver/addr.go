// File: fbserver/addr.go
// Author: corenet contributors

package fbserver

import (
	"golang.org/x/sys/unix"

	fberrors "github.com/fbnetwork/corenet/errors"
	"github.com/fbnetwork/corenet/netconst"
)

// maxLocalPathLen is the largest path fitting in a sockaddr_un's sun_path
// field (matching the original's 104-byte limit for UNIX-domain sockets
// on BSD/Darwin; Linux's sockaddr_un is slightly larger but every domain
// is held to the same, more portable bound).
const maxLocalPathLen = 104

// addr is the tagged address record carried for the server itself and
// for every connected client. Exactly one field group is populated,
// selected by Domain; this collapses what the original modeled as
// three parallel per-domain maps into a single sum-typed value, per
// the design notes.
type addr struct {
	Domain netconst.Domain
	IP     string // IPv4/IPv6 numeric address; "0.0.0.0" or "::" for wildcard bind
	Port   uint16
	Path   string // LOCAL only
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fberrors.New(fberrors.InvalidArgument, "port must be in [0, 65535]")
	}
	return nil
}

func validateLocalPath(path string) error {
	if path == "" {
		return fberrors.New(fberrors.InvalidArgument, "local socket path cannot be empty")
	}
	if len(path) > maxLocalPathLen {
		return fberrors.New(fberrors.InvalidArgument, "local socket path exceeds 104 bytes")
	}
	return nil
}

// wildcardAddr builds the server's own bind address for domain: the
// IPv4/IPv6 wildcard address at port, or the LOCAL filesystem path.
func wildcardAddr(domain netconst.Domain, port int, path string) (addr, error) {
	switch domain {
	case netconst.IPv4:
		if err := validatePort(port); err != nil {
			return addr{}, err
		}
		return addr{Domain: netconst.IPv4, IP: "0.0.0.0", Port: uint16(port)}, nil
	case netconst.IPv6:
		if err := validatePort(port); err != nil {
			return addr{}, err
		}
		return addr{Domain: netconst.IPv6, IP: "::", Port: uint16(port)}, nil
	case netconst.Local:
		if err := validateLocalPath(path); err != nil {
			return addr{}, err
		}
		return addr{Domain: netconst.Local, Path: path}, nil
	default:
		return addr{}, fberrors.New(fberrors.InvalidDomain, "domain must be one of IPv4, IPv6, Local")
	}
}

// socketFamily returns the socket(2) address family for domain.
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

// toSockaddr converts a to the unix.Sockaddr the kernel expects for
// bind/connect.
func (a addr) toSockaddr() (unix.Sockaddr, error) {
	switch a.Domain {
	case netconst.IPv4:
		sa := &unix.SockaddrInet4{Port: int(a.Port)}
		if a.IP != "" && a.IP != "0.0.0.0" {
			var ip [4]byte
			copy(ip[:], netIPTo4(a.IP))
			sa.Addr = ip
		}
		return sa, nil
	case netconst.IPv6:
		sa := &unix.SockaddrInet6{Port: int(a.Port)}
		if a.IP != "" && a.IP != "::" {
			var ip [16]byte
			copy(ip[:], netIPTo16(a.IP))
			sa.Addr = ip
		}
		return sa, nil
	case netconst.Local:
		return &unix.SockaddrUnix{Name: a.Path}, nil
	default:
		return nil, fberrors.New(fberrors.InvalidDomain, "domain must be one of IPv4, IPv6, Local")
	}
}

// fromSockaddr builds an addr record from a peer sockaddr returned by
// accept(2), tagging it with the server's own domain.
func fromSockaddr(domain netconst.Domain, sa unix.Sockaddr) addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return addr{Domain: netconst.IPv4, IP: ip4String(v.Addr), Port: uint16(v.Port)}
	case *unix.SockaddrInet6:
		return addr{Domain: netconst.IPv6, IP: ip6String(v.Addr), Port: uint16(v.Port)}
	case *unix.SockaddrUnix:
		return addr{Domain: netconst.Local, Path: v.Name}
	default:
		return addr{Domain: domain}
	}
}
