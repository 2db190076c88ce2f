package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrPrivateAddress is returned when a host resolves to an address the
// dialer refuses to reach.
var ErrPrivateAddress = errors.New("private address not allowed")

// SafeDialer is a net.Dialer replacement for remote source downloads that
// refuses private, loopback and link-local destinations.
type SafeDialer struct {
	// Timeout bounds each connection attempt. Zero means no timeout.
	Timeout time.Duration

	// Resolver looks up host names. Nil uses net.DefaultResolver.
	Resolver *net.Resolver
}

// DialContext resolves the host, rejects the dial if any address is private
// and connects to the first validated address, so the checked IP is the one
// actually dialed.
func (d *SafeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		host = address
		port = ""
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve host: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no address found for host: %s", host)
	}
	for _, addr := range addrs {
		if IsPrivate(addr.IP) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, host, addr.IP)
		}
	}

	target := addrs[0].IP.String()
	if port != "" {
		target = net.JoinHostPort(target, port)
	}

	dialer := &net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, network, target)
}

// IsPrivate checks if an IP address is private, loopback, link-local or
// unspecified.
func IsPrivate(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
