// File: fbserver/ip.go
// Author: corenet contributors

package fbserver

import "net"

func netIPTo4(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return make([]byte, 4)
	}
	return ip.To4()
}

func netIPTo16(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return make([]byte, 16)
	}
	return ip.To16()
}

func ip4String(b [4]byte) string {
	return net.IP(b[:]).String()
}

func ip6String(b [16]byte) string {
	return net.IP(b[:]).String()
}
