// Package rawsock opens AF_PACKET sockets bound to one interface each,
// carrying whole Ethernet frames in both directions.
package rawsock

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

type Port struct {
	fd      int
	ifindex int
	name    string
}

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// Open binds a non-blocking packet socket to iface.
func Open(iface string) (*Port, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("rawsock: %w", err)
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("rawsock: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("rawsock: %w", err)
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("rawsock: bind %s: %w", iface, err)
	}
	return &Port{fd: fd, ifindex: ifi.Index, name: iface}, nil
}

// Recv reads one frame into buf. It returns 0 when nothing is pending.
func (p *Port) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(p.fd, buf, 0)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rawsock: recv %s: %w", p.name, err)
	}
	return n, nil
}

func (p *Port) Send(frame []byte) error {
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  p.ifindex,
		Halen:    6,
	}
	if err := unix.Sendto(p.fd, frame, 0, sa); err != nil {
		return fmt.Errorf("rawsock: send %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) Close() error { return unix.Close(p.fd) }
