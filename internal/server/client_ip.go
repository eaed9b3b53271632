package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const (
	ipSourceRemoteAddr   = "remote_addr"
	ipSourceForwardedFor = "x_forwarded_for"
	ipSourceRealIP       = "x_real_ip"
	ipSourceUnknown      = "unknown"
	forwardedForHeader   = "X-Forwarded-For"
	realIPHeader         = "X-Real-IP"
)

// clientIPResolver decides which address identifies the caller. Forwarding
// headers are honoured only when the immediate peer is a trusted proxy.
type clientIPResolver struct {
	trusted []netip.Prefix
}

func newClientIPResolver(trustedProxies []string) (*clientIPResolver, error) {
	resolver := &clientIPResolver{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("parse trusted proxy %q: %w", entry, err)
			}
			resolver.trusted = append(resolver.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", entry, err)
		}
		resolver.trusted = append(resolver.trusted, prefix.Masked())
	}
	return resolver, nil
}

func (c *clientIPResolver) resolve(r *http.Request) (string, string) {
	if r == nil {
		return "", ipSourceUnknown
	}
	peer := remoteHost(r.RemoteAddr)
	if c == nil || !c.isTrusted(peer) {
		if peer == "" {
			return "", ipSourceUnknown
		}
		return peer, ipSourceRemoteAddr
	}
	if xff := r.Header.Get(forwardedForHeader); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip, ipSourceForwardedFor
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get(realIPHeader)); realIP != "" {
		return realIP, ipSourceRealIP
	}
	return peer, ipSourceRemoteAddr
}

func (c *clientIPResolver) isTrusted(host string) bool {
	if c == nil || len(c.trusted) == 0 || host == "" {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
