package fragment

import "golang.org/x/net/bpf"

// newPTBFilter assembles the classic-BPF equivalent of
// "icmp[icmptype] == 3 && icmp[icmpcode] == 4" over a full Ethernet frame:
// IPv4 ethertype, ICMP protocol, first fragment only, then the type/code
// pair read IHL-relative in one 16-bit load.
func newPTBFilter() (*bpf.VM, error) {
	return bpf.NewVM([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 8},
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipFalse: 6},
		bpf.LoadAbsolute{Off: 20, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 4},
		bpf.LoadMemShift{Off: 14},
		bpf.LoadIndirect{Off: 14, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0304, SkipFalse: 1},
		bpf.RetConstant{Val: 0xffff},
		bpf.RetConstant{Val: 0},
	})
}
