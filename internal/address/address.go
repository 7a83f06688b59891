// Package address turns the connection strings a front end hands us
// ("ircs://irc.libera.chat", "irc.example.net:6660") into the three
// things a dial needs: whether to use TLS, the host, and the port.
package address

import (
	"net"
	"strconv"
	"strings"
)

const (
	SchemeTLS   = "ircs://"
	SchemePlain = "irc://"

	// DefaultTLSPort is the IANA port for IRC over TLS.
	DefaultTLSPort uint16 = 6697
	// DefaultPlainPort is the conventional plaintext IRC port.
	DefaultPlainPort uint16 = 6667
)

// Parse splits address into (useTLS, host, port).  It never fails:
// when the text after the last ':' is not a valid port the whole
// remainder is treated as the host and the scheme's default port is
// used.  Bracketed IPv6 literals ("[::1]:6697") are unwrapped, and a
// bare IPv6 literal is kept whole rather than split at its last colon.
func Parse(address string) (useTLS bool, host string, port uint16) {
	rest := address
	port = DefaultPlainPort

	switch {
	case strings.HasPrefix(rest, SchemeTLS):
		rest = rest[len(SchemeTLS):]
		useTLS = true
		port = DefaultTLSPort
	case strings.HasPrefix(rest, SchemePlain):
		rest = rest[len(SchemePlain):]
	}

	// ircs://host:6697/: anything after the authority is not ours.
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}

	host, port = splitHostPort(rest, port)
	return useTLS, host, port
}

// splitHostPort applies the last-colon rule with def as the fallback port.
func splitHostPort(hostport string, def uint16) (string, uint16) {
	if strings.HasPrefix(hostport, "[") {
		if end := strings.IndexByte(hostport, ']'); end > 0 {
			host := hostport[1:end]
			tail := hostport[end+1:]
			if tail == "" {
				return host, def
			}
			if p, ok := parsePort(strings.TrimPrefix(tail, ":")); ok && strings.HasPrefix(tail, ":") {
				return host, p
			}
			return hostport, def
		}
	}

	if strings.Count(hostport, ":") > 1 && net.ParseIP(hostport) != nil {
		return hostport, def
	}

	i := strings.LastIndexByte(hostport, ':')
	if i < 0 {
		return hostport, def
	}
	if p, ok := parsePort(hostport[i+1:]); ok {
		return hostport[:i], p
	}
	return hostport, def
}

func parsePort(s string) (uint16, bool) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}
