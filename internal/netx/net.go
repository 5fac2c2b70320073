// Package netx holds small network helpers.
package netx

import (
	"net"
)

// DefaultRouteAddr is only used to pick a route; nothing is sent.
const DefaultRouteAddr = "8.8.8.8:80"

// OutboundIP returns the local address the host would use to reach targetAddr.
// Dialing UDP does not send packets, so this works without connectivity to
// the target as long as a route exists.
func OutboundIP(targetAddr string) (string, error) {
	conn, err := net.Dial("udp", targetAddr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", &net.AddrError{Err: "unexpected local address type", Addr: conn.LocalAddr().String()}
	}
	return addr.IP.String(), nil
}

// OutboundIPOrEmpty is OutboundIP that swallows errors. Audit records accept
// an empty address.
func OutboundIPOrEmpty(targetAddr string) string {
	ip, err := OutboundIP(targetAddr)
	if err != nil {
		return ""
	}
	return ip
}
