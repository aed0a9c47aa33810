package perf

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned by probes that cannot inspect the platform
var ErrUnavailable = errors.New("connectivity information unavailable")

// NetworkInfo describes the host's connectivity
type NetworkInfo struct {
	Online         bool   `json:"online"`
	ConnectionType string `json:"connection_type,omitempty"`
	EffectiveType  string `json:"effective_type,omitempty"`
}

// Connectivity reports network information
type Connectivity interface {
	Probe(ctx context.Context) (NetworkInfo, error)
}

// NetworkStatus asks probe for the current status. Without a probe it inspects
// the host interfaces. If the probe cannot answer, the host is assumed online.
func NetworkStatus(ctx context.Context, probe Connectivity) NetworkInfo {
	if probe == nil {
		probe = InterfaceProbe{}
	}
	info, err := probe.Probe(ctx)
	if err != nil {
		return NetworkInfo{Online: true}
	}
	return info
}

// InterfaceProbe derives connectivity from the host network interfaces
type InterfaceProbe struct {
	// Interfaces lists interfaces (default: net.Interfaces)
	Interfaces func() ([]net.Interface, error)
}

// Probe implements Connectivity
func (p InterfaceProbe) Probe(ctx context.Context) (NetworkInfo, error) {
	list := p.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	ifaces, err := list()
	if err != nil {
		return NetworkInfo{}, errors.Join(ErrUnavailable, err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return NetworkInfo{Online: true, ConnectionType: connectionType(iface.Name)}, nil
	}
	return NetworkInfo{Online: false}, nil
}

func connectionType(name string) string {
	switch {
	case strings.HasPrefix(name, "wl"), strings.HasPrefix(name, "wifi"):
		return "wifi"
	case strings.HasPrefix(name, "en"), strings.HasPrefix(name, "eth"):
		return "ethernet"
	case strings.HasPrefix(name, "ww"), strings.HasPrefix(name, "rmnet"):
		return "cellular"
	default:
		return "other"
	}
}

// LatencyProbe times a HEAD request against URL and grades the round trip
// on the slow-2g/2g/3g/4g scale
type LatencyProbe struct {
	URL    string
	Client *http.Client
	Base   Connectivity
}

// Probe implements Connectivity
func (p LatencyProbe) Probe(ctx context.Context) (NetworkInfo, error) {
	info := NetworkInfo{Online: true}
	if p.Base != nil {
		base, err := p.Base.Probe(ctx)
		if err != nil {
			return NetworkInfo{}, err
		}
		info = base
	}
	if !info.Online {
		return info, nil
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return NetworkInfo{}, errors.Join(ErrUnavailable, err)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return NetworkInfo{Online: false, ConnectionType: info.ConnectionType}, nil
	}
	resp.Body.Close()

	info.EffectiveType = EffectiveType(time.Since(start))
	return info, nil
}

// EffectiveType grades a round-trip time like the browser Network Information API
func EffectiveType(rtt time.Duration) string {
	switch {
	case rtt >= 2000*time.Millisecond:
		return "slow-2g"
	case rtt >= 1400*time.Millisecond:
		return "2g"
	case rtt >= 270*time.Millisecond:
		return "3g"
	default:
		return "4g"
	}
}
