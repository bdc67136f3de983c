// Package packet provides the packet buffers, the free-list pool they are
// drawn from, and the FIFO ports that move them between pipeline stages.
// A buffer on a port belongs to that port; receiving it transfers ownership.
package packet

// MaxSize bounds a single frame. Buffers keep a little slack past MaxSize so
// stages may rely on trailing headroom.
const (
	MaxSize  = 10 * 1024
	headroom = 64
)

type Packet struct {
	data   [MaxSize + headroom]byte
	length int
}

// Bytes returns the live region of the buffer.
func (p *Packet) Bytes() []byte { return p.data[:p.length] }

func (p *Packet) Length() int { return p.length }

// Resize sets the live length. n must fit the buffer.
func (p *Packet) Resize(n int) {
	if n < 0 || n > MaxSize {
		panic("packet: resize out of range")
	}
	p.length = n
}

// Append copies b onto the end of the live region.
func (p *Packet) Append(b []byte) {
	n := p.length + len(b)
	if n > MaxSize {
		panic("packet: append past MaxSize")
	}
	copy(p.data[p.length:], b)
	p.length = n
}

// Pool is a free list of packet buffers. Get falls back to fresh allocation
// when the list runs dry; Put recycles.
type Pool struct {
	free []*Packet
}

func NewPool(prealloc int) *Pool {
	p := &Pool{free: make([]*Packet, 0, prealloc)}
	for i := 0; i < prealloc; i++ {
		p.free = append(p.free, &Packet{})
	}
	return p
}

func (pl *Pool) Get() *Packet {
	if n := len(pl.free); n > 0 {
		pkt := pl.free[n-1]
		pl.free = pl.free[:n-1]
		return pkt
	}
	return &Packet{}
}

// FromBytes allocates a packet holding a copy of b.
func (pl *Pool) FromBytes(b []byte) *Packet {
	pkt := pl.Get()
	pkt.Append(b)
	return pkt
}

func (pl *Pool) Put(pkt *Packet) {
	pkt.length = 0
	pl.free = append(pl.free, pkt)
}

func (pl *Pool) Free() int { return len(pl.free) }

// Port is a bounded FIFO ring of packets. Transmitting onto a full port
// frees the frame back to the pool and counts it as dropped.
type Port struct {
	ring  []*Packet
	head  int
	count int
	pool  *Pool
	drops uint64
}

func NewPort(capacity int, pool *Pool) *Port {
	return &Port{ring: make([]*Packet, capacity), pool: pool}
}

func (pt *Port) Transmit(pkt *Packet) {
	if pt.count == len(pt.ring) {
		pt.pool.Put(pkt)
		pt.drops++
		return
	}
	pt.ring[(pt.head+pt.count)%len(pt.ring)] = pkt
	pt.count++
}

// Receive pops the oldest packet, or nil when the port is empty.
func (pt *Port) Receive() *Packet {
	if pt.count == 0 {
		return nil
	}
	pkt := pt.ring[pt.head]
	pt.ring[pt.head] = nil
	pt.head = (pt.head + 1) % len(pt.ring)
	pt.count--
	return pkt
}

func (pt *Port) Readable() int { return pt.count }

func (pt *Port) Drops() uint64 { return pt.drops }
