// Package wire provides flat byte-slice views over Ethernet II and IPv4
// headers. All multi-byte fields are network order; no decoding allocates.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/netseam/ipfrag/utils"
)

const (
	EthHeaderSize = 14
	EtherTypeIPv4 = 0x0800

	IPv4MinHeaderSize = 20

	// IPv4 flag bits as seen in the 3-bit flags field.
	FlagMoreFragments = 0x1
	FlagDontFragment  = 0x2

	ProtoICMP = 1

	ICMPDestUnreachable = 3
	ICMPFragNeeded      = 4
	ICMPHeaderSize      = 8

	// MinMTU is the RFC 791 forwarder obligation: a 60-byte maximal header
	// plus one 8-byte fragment.
	MinMTU = 68
)

// Addr is an IPv4 address in wire order, usable as a map key.
type Addr [4]byte

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// EthIPv4 overlays an Ethernet II frame carrying IPv4. Accessors assume the
// caller has checked LengthValid (or at least a 34-byte minimum).
type EthIPv4 []byte

func (f EthIPv4) EtherType() uint16 { return binary.BigEndian.Uint16(f[12:14]) }

func (f EthIPv4) IHL() int       { return int(f[14] & 0x0f) }
func (f EthIPv4) HeaderLen() int { return f.IHL() * 4 }

func (f EthIPv4) TotalLength() uint16     { return binary.BigEndian.Uint16(f[16:18]) }
func (f EthIPv4) SetTotalLength(v uint16) { binary.BigEndian.PutUint16(f[16:18], v) }

func (f EthIPv4) ID() uint16     { return binary.BigEndian.Uint16(f[18:20]) }
func (f EthIPv4) SetID(v uint16) { binary.BigEndian.PutUint16(f[18:20], v) }

// Flags returns the 3-bit flags field (DF=0x2, MF=0x1).
func (f EthIPv4) Flags() uint8 { return f[20] >> 5 }

// FragmentOffset returns the 13-bit offset in 8-byte units.
func (f EthIPv4) FragmentOffset() uint16 {
	return binary.BigEndian.Uint16(f[20:22]) & 0x1fff
}

func (f EthIPv4) SetFlagsAndOffset(flags uint8, offsetWords uint16) {
	binary.BigEndian.PutUint16(f[20:22], uint16(flags&0x7)<<13|offsetWords&0x1fff)
}

func (f EthIPv4) TTL() uint8      { return f[22] }
func (f EthIPv4) Protocol() uint8 { return f[23] }

func (f EthIPv4) Checksum() uint16     { return binary.BigEndian.Uint16(f[24:26]) }
func (f EthIPv4) SetChecksum(v uint16) { binary.BigEndian.PutUint16(f[24:26], v) }

func (f EthIPv4) SrcIP() Addr { var a Addr; copy(a[:], f[26:30]); return a }
func (f EthIPv4) DstIP() Addr { var a Addr; copy(a[:], f[30:34]); return a }

// IPHeader returns the IPv4 header bytes (IHL*4 long).
func (f EthIPv4) IPHeader() []byte { return f[EthHeaderSize : EthHeaderSize+f.HeaderLen()] }

// FinalizeChecksum zeroes the checksum field and stores the recomputed
// Internet checksum over exactly IHL*4 header bytes.
func (f EthIPv4) FinalizeChecksum() {
	f.SetChecksum(0)
	f.SetChecksum(utils.IpChecksum(f.IPHeader()))
}

// LengthValid reports whether a frame of n bytes is a well-formed IPv4
// datagram: room for Ethernet + minimal IPv4 header, a sane IHL, and an IPv4
// total length that matches the frame exactly.
func (f EthIPv4) LengthValid(n int) bool {
	if n < EthHeaderSize+IPv4MinHeaderSize {
		return false
	}
	if f.HeaderLen() < IPv4MinHeaderSize {
		return false
	}
	return int(f.TotalLength()) == n-EthHeaderSize
}

// IPv4 overlays a bare IPv4 header (no Ethernet framing), as quoted inside
// ICMP error payloads.
type IPv4 []byte

func (h IPv4) IHL() int       { return int(h[0] & 0x0f) }
func (h IPv4) HeaderLen() int { return h.IHL() * 4 }

func (h IPv4) SrcIP() Addr { var a Addr; copy(a[:], h[12:16]); return a }
func (h IPv4) DstIP() Addr { var a Addr; copy(a[:], h[16:20]); return a }
