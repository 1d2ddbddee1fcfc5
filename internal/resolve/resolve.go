// Package resolve synchronously resolves a host/port endpoint into an
// ordered list of candidate socket addresses, filtered by IPv6 policy.
package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// IPv6Policy mirrors the settings.ipv6 contract of the connect core: it
// decides which address families survive resolution.
type IPv6Policy int

const (
	// IPv6Allow resolves both families in whatever order the resolver
	// returns them.
	IPv6Allow IPv6Policy = iota
	// IPv6Disabled filters out every AAAA/IPv6 result.
	IPv6Disabled
	// IPv6Only filters out every A/IPv4 result.
	IPv6Only
)

// Family is the resolved candidate's address family, independent of any
// OS-specific AF_* constant (the I/O engines derive their own platform
// constant from IsV6).
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Address is one resolved candidate: its family, IP and port (see TCPAddr
// for a dialable *net.TCPAddr).
type Address struct {
	Family Family
	IP     netip.Addr
	Port   int
}

// IsV6 reports whether the candidate is an IPv6 address.
func (a Address) IsV6() bool { return a.Family == FamilyIPv6 }

// TCPAddr returns the candidate as a *net.TCPAddr for use by the I/O
// abstraction.
func (a Address) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: a.IP.AsSlice(), Port: a.Port, Zone: a.IP.Zone()}
}

// List is the ordered, resolved address set for one attempt, with a cursor
// marking the next candidate. It is owned by the attempt and is not safe
// for concurrent use.
type List struct {
	addrs  []Address
	cursor int
}

// Len reports the number of resolved candidates.
func (l *List) Len() int { return len(l.addrs) }

// Current returns the candidate at the cursor and true, or the zero value
// and false if the cursor has run past the tail (exhaustion).
func (l *List) Current() (Address, bool) {
	if l.cursor < 0 || l.cursor >= len(l.addrs) {
		return Address{}, false
	}
	return l.addrs[l.cursor], true
}

// Advance moves the cursor to the next candidate.
func (l *List) Advance() { l.cursor++ }

// Exhausted reports whether the cursor has run past the last candidate.
func (l *List) Exhausted() bool { return l.cursor >= len(l.addrs) }

// Resolver resolves host/port endpoints. The default implementation wraps
// net.Resolver; tests substitute a fake to avoid touching real DNS.
type Resolver interface {
	Resolve(ctx context.Context, host, port string, policy IPv6Policy) (*List, error)
}

// SystemResolver resolves using net.DefaultResolver.
type SystemResolver struct {
	// LookupIPAddr allows tests to substitute the lookup function; defaults
	// to net.DefaultResolver.LookupIPAddr when nil.
	LookupIPAddr func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Resolve implements Resolver.
func (r *SystemResolver) Resolve(ctx context.Context, host, port string, policy IPv6Policy) (*List, error) {
	lookup := r.LookupIPAddr
	if lookup == nil {
		lookup = net.DefaultResolver.LookupIPAddr
	}
	portNum, err := net.LookupPort("tcp", port)
	if err != nil {
		return nil, fmt.Errorf("resolve: invalid port %q: %w", port, err)
	}
	ipAddrs, err := lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve: lookup %q: %w", host, err)
	}

	list := &List{}
	for _, ia := range ipAddrs {
		addr, ok := netip.AddrFromSlice(ia.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		isV6 := addr.Is6() && !addr.Is4In6()
		switch policy {
		case IPv6Disabled:
			if isV6 {
				continue
			}
		case IPv6Only:
			if !isV6 {
				continue
			}
		}
		family := FamilyIPv4
		if isV6 {
			family = FamilyIPv6
		}
		list.addrs = append(list.addrs, Address{Family: family, IP: addr, Port: portNum})
	}
	if len(list.addrs) == 0 {
		return nil, fmt.Errorf("resolve: no addresses for %q matching policy", host)
	}
	return list, nil
}
