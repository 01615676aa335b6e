// Package netutil holds small address helpers used at startup.
package netutil

import "net"

// Loopback is returned when no outbound interface can be found.
const Loopback = "127.0.0.1"

// LocalIP returns the IPv4 address of the interface that would carry
// outbound traffic. No packet is sent: connecting a UDP socket only selects a
// route. Falls back to Loopback.
func LocalIP() string {
	return localIP("8.8.8.8:80")
}

func localIP(probe string) string {
	conn, err := net.Dial("udp4", probe)
	if err != nil {
		return Loopback
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.To4() == nil || addr.IP.IsUnspecified() {
		return Loopback
	}
	return addr.IP.String()
}
