package webrtc

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10, used by carrier NAT, Tailscale and WARP.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp"}

type netInterface struct {
	name  string
	flags net.Flags
	ips   []net.IP
}

// ShouldForceRelay reports whether this host is likely behind a VPN or
// CGNAT, where direct paths rarely work and TURN should carry media.
func ShouldForceRelay() bool {
	ifaces, err := localInterfaces()
	if err != nil {
		return false
	}
	return relayHint(ifaces)
}

func relayHint(ifaces []netInterface) bool {
	for _, iface := range ifaces {
		if iface.flags&net.FlagUp == 0 || iface.flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.name)
		for _, t := range tunnelNames {
			if strings.Contains(name, t) {
				return true
			}
		}

		for _, ip := range iface.ips {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func localInterfaces() ([]netInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		ni := netInterface{name: iface.Name, flags: iface.Flags}

		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					ni.ips = append(ni.ips, v.IP)
				case *net.IPAddr:
					ni.ips = append(ni.ips, v.IP)
				}
			}
		}
		out = append(out, ni)
	}
	return out, nil
}
