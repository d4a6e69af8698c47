// File: fbclient/ip.go
// Author: corenet contributors

package fbclient

import "net"

func netIPTo4(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	return ip.To4()
}

func netIPTo16(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	return ip.To16()
}
