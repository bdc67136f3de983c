// Package fragment implements the IPv4 fragmentation stage with path MTU
// discovery. One Push call per scheduling tick drains the stage's ports:
// ingress traffic is forwarded, dropped, or sliced into RFC 791 fragments;
// the return path feeds ICMP Fragmentation-Needed messages into a
// per-destination MTU cache with throttled expiry.
package fragment

import (
	"math/rand"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"

	"github.com/netseam/ipfrag/alarms"
	"github.com/netseam/ipfrag/config"
	"github.com/netseam/ipfrag/counters"
	"github.com/netseam/ipfrag/logx"
	"github.com/netseam/ipfrag/packet"
	"github.com/netseam/ipfrag/wire"
)

// Published counter names.
const (
	CntFrag           = "out-ipv4-frag"
	CntFragNot        = "out-ipv4-frag-not"
	CntPTBReceived    = "ipv4-pmtud-ptb-received"
	CntPTBValid       = "ipv4-pmtud-ptb-valid"
	CntPTBInvalidCsum = "ipv4-pmtud-ptb-invalid-csum"
	CntPTBInvalid     = "ipv4-pmtud-ptb-invalid"
)

var counterNames = []string{
	CntFrag, CntFragNot,
	CntPTBReceived, CntPTBValid, CntPTBInvalidCsum, CntPTBInvalid,
}

const (
	portCapacity = 2048

	// deterministicSeed is the fragment-ID generator's pinned start in
	// reproducible runs.
	deterministicSeed = 0x4242

	fragAlarmName  = "outgoing-ipv4-fragments"
	fragAlarmLimit = 10000 // fragments per second
)

type Fragmenter struct {
	// Input carries ingress IPv4 traffic, Output the egress side. South and
	// North exist only with PMTUD enabled: South is the inbound return path,
	// North forwards what this stage does not consume.
	Input, Output *packet.Port
	South, North  *packet.Port

	Counters *counters.Block

	mtu          uint16
	pmtud        bool
	locals       map[wire.Addr]struct{}
	timeoutTicks uint64
	sweepEvery   uint64
	lastSweep    uint64

	nextID uint16
	cache  *pmtuCache
	clk    Clock
	pool   *packet.Pool

	ptbFilter  *bpf.VM
	ptbParser  *gopacket.DecodingLayerParser
	ptbEth     layers.Ethernet
	ptbIP      layers.IPv4
	ptbICMP    layers.ICMPv4
	ptbPayload gopacket.Payload
	ptbDecoded []gopacket.LayerType

	fragWatch *alarms.RateWatch

	cntFrag           *counters.Counter
	cntFragNot        *counters.Counter
	cntPTBReceived    *counters.Counter
	cntPTBValid       *counters.Counter
	cntPTBInvalidCsum *counters.Counter
	cntPTBInvalid     *counters.Counter
}

// New validates cfg and builds the stage. pool provides every buffer the
// stage allocates; clk is the monotonic tick source.
func New(cfg *config.Config, pool *packet.Pool, clk Clock) (*Fragmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cnt, err := counters.Open(cfg.CountersDir, counterNames...)
	if err != nil {
		return nil, err
	}

	f := &Fragmenter{
		Input:    packet.NewPort(portCapacity, pool),
		Output:   packet.NewPort(portCapacity, pool),
		Counters: cnt,
		mtu:      cfg.MTU,
		pmtud:    cfg.PMTUD,
		clk:      clk,
		pool:     pool,
		cache:    newPMTUCache(),
	}
	f.cntFrag = cnt.Get(CntFrag)
	f.cntFragNot = cnt.Get(CntFragNot)
	f.cntPTBReceived = cnt.Get(CntPTBReceived)
	f.cntPTBValid = cnt.Get(CntPTBValid)
	f.cntPTBInvalidCsum = cnt.Get(CntPTBInvalidCsum)
	f.cntPTBInvalid = cnt.Get(CntPTBInvalid)

	if cfg.DeterministicID {
		f.nextID = deterministicSeed
	} else {
		f.nextID = uint16(rand.New(rand.NewSource(time.Now().UnixNano())).Intn(0x10000))
	}

	if cfg.PMTUD {
		f.South = packet.NewPort(portCapacity, pool)
		f.North = packet.NewPort(portCapacity, pool)
		f.locals = make(map[wire.Addr]struct{}, len(cfg.LocalAddresses))
		for _, a := range cfg.LocalAddresses {
			f.locals[a] = struct{}{}
		}
		f.timeoutTicks = uint64(cfg.PMTUTimeout) * clk.TicksPerSecond()
		f.sweepEvery = f.timeoutTicks / 10
		if f.sweepEvery == 0 {
			f.sweepEvery = 1
		}
		f.lastSweep = clk.Now()
		if f.ptbFilter, err = newPTBFilter(); err != nil {
			return nil, err
		}
		f.ptbParser = newPTBParser(f)
		f.ptbDecoded = make([]gopacket.LayerType, 0, 4)
	}

	if cfg.UseAlarms {
		a := alarms.Register(fragAlarmName, alarms.SeverityWarning)
		f.fragWatch = alarms.NewRateWatch(a, fragAlarmLimit)
	}

	logx.Infof("fragmenter: mtu=%d pmtud=%v pmtu_timeout=%ds locals=%d",
		cfg.MTU, cfg.PMTUD, cfg.PMTUTimeout, len(cfg.LocalAddresses))
	return f, nil
}

// Push processes one scheduling tick: it drains Input toward Output and,
// with PMTUD on, drains South and runs the expiry throttle.
func (f *Fragmenter) Push() {
	f.pushInput()
	if f.pmtud {
		f.pushSouth()
		f.maybeSweep()
	}
	if f.fragWatch != nil {
		f.fragWatch.Observe(f.cntFrag.Value(), f.clk.Now(), f.clk.TicksPerSecond())
	}
}

func (f *Fragmenter) pushInput() {
	for n := f.Input.Readable(); n > 0; n-- {
		p := f.Input.Receive()
		hdr := wire.EthIPv4(p.Bytes())

		// Non-IPv4 rides through untouched.
		if p.Length() < wire.EthHeaderSize || hdr.EtherType() != wire.EtherTypeIPv4 {
			f.cntFragNot.Add(1)
			f.Output.Transmit(p)
			continue
		}
		if !hdr.LengthValid(p.Length()) {
			f.pool.Put(p)
			continue
		}

		mtu := f.effectiveMTU(hdr.DstIP())
		if p.Length() <= int(mtu)+wire.EthHeaderSize {
			f.cntFragNot.Add(1)
			f.Output.Transmit(p)
			continue
		}
		f.fragment(p, mtu)
	}
}

// effectiveMTU prefers a learned path MTU over the configured egress MTU.
func (f *Fragmenter) effectiveMTU(dst wire.Addr) uint16 {
	if f.pmtud {
		if learned, ok := f.cache.Lookup(dst); ok {
			return learned
		}
	}
	return f.mtu
}

// allocID advances the 16-bit fragment-ID counter and returns the new value.
func (f *Fragmenter) allocID() uint16 {
	f.nextID++
	return f.nextID
}

// fragment slices p into fragments no larger than mtu+14 bytes each and
// frees the input. mtu excludes the Ethernet header.
func (f *Fragmenter) fragment(p *packet.Packet, mtu uint16) {
	hdr := wire.EthIPv4(p.Bytes())
	origFlags := hdr.Flags()

	if origFlags&wire.FlagDontFragment != 0 && !f.pmtud {
		// TODO: originate ICMP destination-unreachable (fragmentation
		// needed) toward the source instead of dropping silently.
		logx.Tracef("fragment: DF set on %d-byte packet to %s, dropping",
			p.Length(), hdr.DstIP())
		f.pool.Put(p)
		return
	}

	headerSize := wire.EthHeaderSize + hdr.HeaderLen()
	totalPayload := p.Length() - headerSize
	id := f.allocID()
	in := p.Bytes()

	for offset := 0; offset < totalPayload; {
		out := f.pool.Get()
		out.Append(in[:headerSize])

		payloadSize := int(mtu) + wire.EthHeaderSize - headerSize
		flags := origFlags
		if offset+payloadSize < totalPayload {
			// Non-final fragments carry 8-byte multiples.
			payloadSize &^= 0x7
			flags |= wire.FlagMoreFragments
		} else {
			payloadSize = totalPayload - offset
		}
		if payloadSize <= 0 {
			// A learned MTU below header+8 cannot make progress.
			f.pool.Put(out)
			break
		}
		out.Append(in[headerSize+offset : headerSize+offset+payloadSize])

		oh := wire.EthIPv4(out.Bytes())
		oh.SetID(id)
		oh.SetTotalLength(uint16(out.Length() - wire.EthHeaderSize))
		oh.SetFlagsAndOffset(flags, uint16(offset/8))
		oh.FinalizeChecksum()

		f.Output.Transmit(out)
		f.cntFrag.Add(1)
		offset += payloadSize
	}
	f.pool.Put(p)
}
