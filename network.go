package main

import (
	"context"
	"fmt"
	"net"
	"time"
)

// addressSource lists the addresses a host currently holds.
type addressSource func() ([]net.Addr, error)

func interfaceAddrs(name string) addressSource {
	if name == "" {
		return net.InterfaceAddrs
	}
	return func() ([]net.Addr, error) {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		return iface.Addrs()
	}
}

// waitForAddress polls source until it reports a non-loopback IPv4 address.
// A timeout <= 0 skips the wait.
func waitForAddress(ctx context.Context, source addressSource, timeout, poll time.Duration) (net.IP, error) {
	if timeout <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var lastErr error
	for {
		addrs, err := source()
		if err != nil {
			lastErr = err
		}
		if ip := firstIPv4(addrs); ip != nil {
			return ip, nil
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("no network address after %s: %w", timeout, lastErr)
			}
			return nil, fmt.Errorf("no network address after %s", timeout)
		case <-ticker.C:
		}
	}
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
