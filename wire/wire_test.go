package wire

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netseam/ipfrag/utils"
)

func buildFrame(t *testing.T, payloadLen int, df bool) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1234,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{192, 0, 2, 9},
	}
	if df {
		ip.Flags = layers.IPv4DontFragment
	}
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf,
		gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true},
		eth, ip, gopacket.Payload(make([]byte, payloadLen)),
	); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func TestEthIPv4_FieldViews(t *testing.T) {
	raw := buildFrame(t, 100, true)
	f := EthIPv4(raw)

	if f.EtherType() != EtherTypeIPv4 {
		t.Fatalf("ethertype = 0x%04x", f.EtherType())
	}
	if f.HeaderLen() != 20 {
		t.Fatalf("header len = %d", f.HeaderLen())
	}
	if int(f.TotalLength()) != len(raw)-EthHeaderSize {
		t.Fatalf("total length = %d, frame = %d", f.TotalLength(), len(raw))
	}
	if f.ID() != 0x1234 {
		t.Fatalf("id = 0x%04x", f.ID())
	}
	if f.Flags()&FlagDontFragment == 0 {
		t.Fatalf("DF not seen, flags = %x", f.Flags())
	}
	if f.Protocol() != 17 {
		t.Fatalf("protocol = %d", f.Protocol())
	}
	if got := f.DstIP(); got != (Addr{192, 0, 2, 9}) {
		t.Fatalf("dst = %s", got)
	}
	if !f.LengthValid(len(raw)) {
		t.Fatalf("LengthValid = false for well-formed frame")
	}
}

func TestEthIPv4_LengthValidRejects(t *testing.T) {
	raw := buildFrame(t, 50, false)

	// Truncated frame: total_length no longer matches.
	if EthIPv4(raw).LengthValid(len(raw) - 3) {
		t.Fatalf("truncated frame accepted")
	}
	// Too short for any header.
	if EthIPv4(raw[:20]).LengthValid(20) {
		t.Fatalf("20-byte frame accepted")
	}
	// Corrupt IHL below 5 words.
	bad := append([]byte(nil), raw...)
	bad[14] = 0x42
	if EthIPv4(bad).LengthValid(len(bad)) {
		t.Fatalf("IHL=2 accepted")
	}
}

func TestEthIPv4_SettersAndChecksum(t *testing.T) {
	raw := buildFrame(t, 64, false)
	f := EthIPv4(raw)

	f.SetID(0xbeef)
	f.SetFlagsAndOffset(FlagMoreFragments, 60)
	f.SetTotalLength(uint16(len(raw) - EthHeaderSize))
	f.FinalizeChecksum()

	if f.ID() != 0xbeef {
		t.Fatalf("id = 0x%04x", f.ID())
	}
	if f.Flags() != FlagMoreFragments || f.FragmentOffset() != 60 {
		t.Fatalf("flags/offset = %x/%d", f.Flags(), f.FragmentOffset())
	}
	if utils.IpChecksum(f.IPHeader()) != 0 {
		t.Fatalf("checksum does not verify")
	}
}

func TestIPv4_QuotedHeaderView(t *testing.T) {
	raw := buildFrame(t, 8, false)
	q := IPv4(raw[EthHeaderSize:])
	if q.HeaderLen() != 20 {
		t.Fatalf("quoted header len = %d", q.HeaderLen())
	}
	if q.SrcIP() != (Addr{10, 0, 0, 1}) || q.DstIP() != (Addr{192, 0, 2, 9}) {
		t.Fatalf("quoted addrs = %s -> %s", q.SrcIP(), q.DstIP())
	}
}
