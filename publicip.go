package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

const (
	DefaultPublicIPURL = "https://api.ipify.org/"
	publicIPTimeout    = 10 * time.Second
)

// nonGlobalPrefixes are address blocks that are not routable on the public
// internet.
var nonGlobalPrefixes = mustPrefixes(
	"0.0.0.0/8",       // this network
	"10.0.0.0/8",      // private
	"100.64.0.0/10",   // shared address space
	"127.0.0.0/8",     // loopback
	"169.254.0.0/16",  // link local
	"172.16.0.0/12",   // private
	"192.0.0.0/24",    // protocol assignments
	"192.0.2.0/24",    // documentation
	"192.168.0.0/16",  // private
	"198.18.0.0/15",   // benchmarking
	"198.51.100.0/24", // documentation
	"203.0.113.0/24",  // documentation
	"240.0.0.0/4",     // reserved and broadcast
	"::/128",
	"::1/128",
	"::ffff:0:0/96",
	"64:ff9b:1::/48",
	"100::/64",
	"2001::/23",
	"2001:db8::/32",
	"fc00::/7",
	"fe80::/10",
)

func mustPrefixes(list ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(list))
	for i, s := range list {
		out[i] = netip.MustParsePrefix(s)
	}
	return out
}

// IsGlobalIP reports whether ip is publicly routable, so a lobby bound to it
// can be listed for everyone.
func IsGlobalIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	addr = addr.Unmap()
	if addr.IsMulticast() {
		return false
	}
	for _, p := range nonGlobalPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// NetworkInfo discovers the public IPv4 address once in the background.
type NetworkInfo struct {
	url      string
	client   *http.Client
	result   chan net.IP
	publicIP net.IP
	done     bool
}

func NewNetworkInfo(url string) *NetworkInfo {
	if url == "" {
		url = DefaultPublicIPURL
	}
	return &NetworkInfo{
		url:    url,
		client: &http.Client{Timeout: publicIPTimeout},
		result: make(chan net.IP, 1),
	}
}

// FetchIP starts the lookup. The outcome is picked up by Poll.
func (n *NetworkInfo) FetchIP(ctx context.Context) {
	go func() {
		ip, err := n.lookup(ctx)
		if err != nil {
			log.Printf("public ip: %v", err)
		} else {
			log.Printf("found public ip: %s", ip)
		}
		n.result <- ip
	}()
}

func (n *NetworkInfo) lookup(ctx context.Context) (net.IP, error) {
	ctx, span := tracer.Start(ctx, "public_ip.lookup")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	text := strings.TrimSpace(string(body))
	ip := net.ParseIP(text).To4()
	if ip == nil {
		return nil, fmt.Errorf("could not parse ip %q", text)
	}
	return ip, nil
}

// Poll picks up a finished lookup without blocking.
func (n *NetworkInfo) Poll() {
	select {
	case ip := <-n.result:
		n.publicIP = ip
		n.done = true
	default:
	}
}

// PublicIP returns the discovered address, if the lookup succeeded.
func (n *NetworkInfo) PublicIP() (net.IP, bool) {
	return n.publicIP, n.publicIP != nil
}

// Resolved reports whether the lookup has finished, successfully or not.
func (n *NetworkInfo) Resolved() bool {
	return n.done
}
