// Package ifmtu resolves an interface's MTU over rtnetlink.
package ifmtu

import (
	"fmt"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

const ifInfomsgLen = 16 // struct ifinfomsg

// MTU dumps the link table and returns the MTU of the named interface.
func MTU(iface string) (int, error) {
	c, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return 0, fmt.Errorf("ifmtu: dial: %w", err)
	}
	defer c.Close()

	msgs, err := c.Execute(netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(unix.RTM_GETLINK),
			Flags: netlink.Request | netlink.Dump,
		},
		Data: make([]byte, ifInfomsgLen),
	})
	if err != nil {
		return 0, fmt.Errorf("ifmtu: dump links: %w", err)
	}

	for _, m := range msgs {
		if len(m.Data) < ifInfomsgLen {
			continue
		}
		ad, err := netlink.NewAttributeDecoder(m.Data[ifInfomsgLen:])
		if err != nil {
			return 0, fmt.Errorf("ifmtu: %w", err)
		}
		var (
			name string
			mtu  uint32
		)
		for ad.Next() {
			switch ad.Type() {
			case unix.IFLA_IFNAME:
				name = ad.String()
			case unix.IFLA_MTU:
				mtu = ad.Uint32()
			}
		}
		if err := ad.Err(); err != nil {
			return 0, fmt.Errorf("ifmtu: decode attributes: %w", err)
		}
		if name == iface {
			return int(mtu), nil
		}
	}
	return 0, fmt.Errorf("ifmtu: interface %q not found", iface)
}
