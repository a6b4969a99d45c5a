package vpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"
)

// PublicIPLookup discovers the public IP address of the calling host
type PublicIPLookup interface {
	PublicIP(ctx context.Context) (netip.Addr, error)
}

// HTTPIPLookup queries an IP-echo service returning a JSON object with an
// "ip" field, such as https://ifconfig.io/all.json
type HTTPIPLookup struct {
	URL    string
	Client *http.Client
}

// NewHTTPIPLookup creates an HTTPIPLookup with its own client timeout
func NewHTTPIPLookup(url string, timeout time.Duration) *HTTPIPLookup {
	return &HTTPIPLookup{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// PublicIP fetches and parses the caller's address
func (l *HTTPIPLookup) PublicIP(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to build IP lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("IP lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("IP lookup returned %s", resp.Status)
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return netip.Addr{}, fmt.Errorf("failed to decode IP lookup response: %w", err)
	}
	addr, err := netip.ParseAddr(body.IP)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("IP lookup returned invalid address %q: %w", body.IP, err)
	}
	return addr, nil
}

// StaticIPLookup returns a fixed address or error
type StaticIPLookup struct {
	Addr netip.Addr
	Err  error
}

// PublicIP returns l.Addr or l.Err
func (l StaticIPLookup) PublicIP(ctx context.Context) (netip.Addr, error) {
	return l.Addr, l.Err
}

// anyIPv4 is used when the caller's address cannot be discovered
var anyIPv4 = netip.MustParsePrefix("0.0.0.0/0")

// sshSourcePrefix returns the single-host prefix of the caller, or 0.0.0.0/0
// when the lookup fails
func (b *Builder) sshSourcePrefix(ctx context.Context) netip.Prefix {
	addr, err := b.ipLookup.PublicIP(ctx)
	if err != nil {
		b.log.Info("Public IP lookup failed, allowing SSH from anywhere", "error", err.Error())
		return anyIPv4
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen())
}
