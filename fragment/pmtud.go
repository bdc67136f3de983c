package fragment

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netseam/ipfrag/logx"
	"github.com/netseam/ipfrag/packet"
	"github.com/netseam/ipfrag/utils"
	"github.com/netseam/ipfrag/wire"
)

const (
	// dcache starts at this capacity and doubles whenever live entries
	// exceed 40% of it.
	cacheInitialCapacity = 128
	cacheMaxLoadNum      = 2
	cacheMaxLoadDen      = 5
)

type cacheEntry struct {
	mtu    uint16
	tstamp uint64
}

// pmtuCache maps destination IPv4 addresses to learned path MTUs.
type pmtuCache struct {
	entries  map[wire.Addr]cacheEntry
	capacity int
}

func newPMTUCache() *pmtuCache {
	return &pmtuCache{
		entries:  make(map[wire.Addr]cacheEntry, cacheInitialCapacity),
		capacity: cacheInitialCapacity,
	}
}

func (c *pmtuCache) Lookup(dst wire.Addr) (uint16, bool) {
	e, ok := c.entries[dst]
	return e.mtu, ok
}

// Upsert inserts or refreshes an entry. The capacity doubles once occupancy
// would pass the load bound, mirroring an open table's resize trigger.
func (c *pmtuCache) Upsert(dst wire.Addr, mtu uint16, now uint64) {
	c.entries[dst] = cacheEntry{mtu: mtu, tstamp: now}
	for len(c.entries) > c.capacity*cacheMaxLoadNum/cacheMaxLoadDen {
		c.capacity *= 2
	}
}

// Sweep removes every entry older than timeout ticks. Deleting during the
// range is safe in Go and never skips surviving entries.
func (c *pmtuCache) Sweep(now, timeout uint64) {
	for dst, e := range c.entries {
		if now-e.tstamp > timeout {
			delete(c.entries, dst)
		}
	}
}

func (c *pmtuCache) Len() int { return len(c.entries) }

// ptbVerdict is the outcome of processPTB.
type ptbVerdict int

const (
	ptbConsumed  ptbVerdict = iota // packet handled here, free it
	ptbForwarded                   // not for us, pass upstream
)

// pushSouth drains the return-path port: PTB messages addressed to us are
// absorbed into the cache, everything else rides through to north.
func (f *Fragmenter) pushSouth() {
	for n := f.South.Readable(); n > 0; n-- {
		p := f.South.Receive()
		ret, err := f.ptbFilter.Run(p.Bytes())
		if err != nil || ret == 0 {
			f.North.Transmit(p)
			continue
		}
		f.cntPTBReceived.Add(1)
		switch f.processPTB(p) {
		case ptbForwarded:
			f.North.Transmit(p)
		default:
			f.pool.Put(p)
		}
	}
}

// processPTB validates an ICMP Fragmentation-Needed message and learns the
// advertised next-hop MTU for the quoted destination.
func (f *Fragmenter) processPTB(p *packet.Packet) ptbVerdict {
	decoded := f.ptbDecoded[:0]
	if err := f.ptbParser.DecodeLayers(p.Bytes(), &decoded); err != nil {
		// The filter matched, so the frame claims to be ICMP 3/4 but does
		// not parse as one.
		f.cntPTBInvalid.Add(1)
		return ptbConsumed
	}

	var outerDst wire.Addr
	copy(outerDst[:], f.ptbIP.DstIP.To4())
	if len(f.locals) > 0 {
		if _, ours := f.locals[outerDst]; !ours {
			return ptbForwarded
		}
	}

	// Checksum covers the whole ICMP message: header plus quoted datagram.
	icmpBytes := f.ptbIP.Payload
	if utils.IpChecksum(icmpBytes) != 0 {
		f.cntPTBInvalidCsum.Add(1)
		return ptbConsumed
	}

	// RFC 1191: the next-hop MTU rides in the echo-seq slot, byte 6 of the
	// ICMP message. Values below the RFC 791 minimum cannot be honored and
	// would poison the cache.
	mtu := f.ptbICMP.Seq
	if mtu < wire.MinMTU {
		f.cntPTBInvalid.Add(1)
		return ptbConsumed
	}

	quoted := f.ptbICMP.Payload
	if len(quoted) >= wire.IPv4MinHeaderSize {
		q := wire.IPv4(quoted)
		_, srcIsOurs := f.locals[q.SrcIP()]
		if len(f.locals) == 0 || srcIsOurs {
			f.cntPTBValid.Add(1)
			f.cache.Upsert(q.DstIP(), mtu, f.clk.Now())
			logx.Tracef("pmtud: learned mtu %d for %s", mtu, q.DstIP())
			return ptbConsumed
		}
	}
	f.cntPTBInvalid.Add(1)
	return ptbConsumed
}

// maybeSweep runs the expiry scan when the throttle (a tenth of the
// configured timeout) has elapsed.
func (f *Fragmenter) maybeSweep() {
	now := f.clk.Now()
	if now-f.lastSweep < f.sweepEvery {
		return
	}
	f.lastSweep = now
	before := f.cache.Len()
	f.cache.Sweep(now, f.timeoutTicks)
	if dropped := before - f.cache.Len(); dropped > 0 {
		logx.Debugf("pmtud: expired %d cache entries", dropped)
	}
}

func newPTBParser(f *Fragmenter) *gopacket.DecodingLayerParser {
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet,
		&f.ptbEth, &f.ptbIP, &f.ptbICMP, &f.ptbPayload)
	parser.IgnoreUnsupported = true
	return parser
}
