package app

import (
	"net"
	"net/netip"
)

// netInterface is the slice of net.Interface used for address discovery
type netInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type interfaceLister interface {
	Interfaces() ([]netInterface, error)
}

type systemInterface struct {
	iface net.Interface
}

func (s systemInterface) Flags() net.Flags           { return s.iface.Flags }
func (s systemInterface) Addrs() ([]net.Addr, error) { return s.iface.Addrs() }

type systemInterfaces struct{}

func (systemInterfaces) Interfaces() ([]netInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]netInterface, len(ifaces))
	for i, iface := range ifaces {
		out[i] = systemInterface{iface: iface}
	}
	return out, nil
}

// preferredIP picks the IPv4 address other devices on the LAN are most
// likely to reach: a private address if there is one, otherwise the first
// non-loopback address, otherwise localhost.
func preferredIP(lister interfaceLister) string {
	ifaces, err := lister.Interfaces()
	if err != nil {
		return "localhost"
	}

	var fallback netip.Addr
	for _, iface := range ifaces {
		if iface.Flags()&net.FlagUp == 0 || iface.Flags()&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, ok := ipv4(a)
			if !ok || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if ip.IsPrivate() {
				return ip.String()
			}
			if !fallback.IsValid() {
				fallback = ip
			}
		}
	}

	if fallback.IsValid() {
		return fallback.String()
	}
	return "localhost"
}

func ipv4(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	return addr, addr.Is4()
}
