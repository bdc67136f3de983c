package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/netseam/ipfrag/wire"
)

const (
	VerboseInfo = iota
	VerboseDebug
	VerboseTrace
)

type Config struct {
	// MTU is the egress L3 MTU, excluding the 14-byte Ethernet header.
	// 0 lets the daemon autodetect it from the egress link at startup;
	// Validate requires it resolved to >= wire.MinMTU.
	MTU uint16

	PMTUD          bool
	PMTUTimeout    uint32 // cache entry lifetime, seconds
	LocalAddresses []wire.Addr
	UseAlarms      bool

	// DeterministicID pins the fragment-ID generator's starting value for
	// reproducible runs.
	DeterministicID bool

	InputIface  string
	OutputIface string
	SouthIface  string
	NorthIface  string

	CountersDir string

	Verbose    int
	Instaflush bool
	Syslog     bool
}

var DefaultConfig = Config{
	PMTUTimeout: 600,
	UseAlarms:   true,
	CountersDir: "/var/run/ipfrag",
	Verbose:     VerboseInfo,
}

func (c *Config) Validate() error {
	if c.MTU < wire.MinMTU {
		return fmt.Errorf("config: mtu %d below minimum %d", c.MTU, wire.MinMTU)
	}
	if c.PMTUTimeout == 0 {
		return fmt.Errorf("config: pmtu_timeout must be positive")
	}
	seen := map[wire.Addr]struct{}{}
	for _, a := range c.LocalAddresses {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("config: duplicate local address %s", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

func ParseIPv4(s string) (wire.Addr, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip = ip.To4(); ip == nil {
		return wire.Addr{}, fmt.Errorf("config: %q is not an IPv4 address", s)
	}
	var a wire.Addr
	copy(a[:], ip)
	return a, nil
}

// ParseIPv4List parses a comma-separated address list; empty input yields
// an empty list.
func ParseIPv4List(csv string) ([]wire.Addr, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var out []wire.Addr
	for _, part := range strings.Split(csv, ",") {
		a, err := ParseIPv4(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
