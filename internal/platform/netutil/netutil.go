// Package netutil finds the address players on the LAN should open.
package netutil

import (
	"fmt"
	"net"
)

// LocalIP returns the outbound interface address, or 127.0.0.1 when there is
// no route. Dialing UDP sends no packets.
func LocalIP() string {
	conn, err := net.Dial("udp", "10.255.255.255:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

// ControllerURL is the page players open to join.
func ControllerURL(host string, port int) string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprint(port)))
}

// PortFromAddr extracts the port of a listen address such as ":5050".
func PortFromAddr(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	p, err := net.LookupPort("tcp", port)
	if err != nil {
		return 0, err
	}
	return p, nil
}
