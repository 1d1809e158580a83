package discovery

import (
	"net"
	"strconv"
	"strings"
)

// ParseAddress extracts host and port from a node's published HTTP address.
//
// Two notations are understood:
//
//	inet[hostname/192.168.1.5:9200]   transport[host/ip:port]
//	192.168.1.5:9200                  host:port
//
// In the bracketed form the ip is preferred and the hostname is used when
// the ip is missing. An unbracketed IPv6 ip there, as in
// inet[/0:0:0:0:0:0:0:1:9200], is split at its last colon. When no host can be found, seedHost (the host of the
// seed that reported the node) is returned.
func ParseAddress(addr, seedHost string) (string, int, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0, &AddressError{Address: addr, Message: "empty"}
	}

	hostname := ""
	hostPort := addr
	inet := false

	if open := strings.IndexByte(addr, '['); open >= 0 && strings.HasSuffix(addr, "]") && !strings.HasPrefix(addr, "[") {
		inet = true
		inner := addr[open+1 : len(addr)-1]
		if slash := strings.LastIndexByte(inner, '/'); slash >= 0 {
			hostname = inner[:slash]
			hostPort = inner[slash+1:]
		} else {
			hostPort = inner
		}
	}

	var host, portStr string
	if colon := strings.LastIndexByte(hostPort, ':'); inet && colon > 0 &&
		strings.Count(hostPort, ":") > 1 && !strings.HasPrefix(hostPort, "[") {
		host, portStr = hostPort[:colon], hostPort[colon+1:]
		if net.ParseIP(host) == nil {
			return "", 0, &AddressError{Address: addr, Message: "invalid IPv6 address " + host}
		}
	} else {
		var err error
		host, portStr, err = net.SplitHostPort(hostPort)
		if err != nil {
			return "", 0, &AddressError{Address: addr, Message: err.Error()}
		}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, &AddressError{Address: addr, Message: "port must be between 1 and 65535"}
	}

	if host == "" {
		host = hostname
	}
	if host == "" {
		host = seedHost
	}
	if host == "" {
		return "", 0, &AddressError{Address: addr, Message: "no host"}
	}

	return host, port, nil
}

// seedHost returns the host part of a "host:port" seed.
func seedHost(seed string) string {
	host, _, err := net.SplitHostPort(seed)
	if err != nil {
		return seed
	}
	return host
}
