package capture

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// ErrReadTimeout is returned by a PacketSource when no frame arrived within
// its read timeout. The capture loop uses it as a chance to check for
// cancellation on quiet links.
var ErrReadTimeout = errors.New("capture: read timeout")

// PacketSource yields raw frames from some capture backend. Implementations
// must make Close safe to call more than once and must unblock a pending
// ReadPacket when closed.
type PacketSource interface {
	// Open binds the source to an interface with an optional BPF filter.
	// The filter string is passed through verbatim, never parsed here.
	Open(iface, filter string) error

	// ReadPacket blocks until the next frame, ErrReadTimeout, or a
	// terminal error (including the source being closed).
	ReadPacket() (gopacket.Packet, error)

	// Close releases the underlying handle.
	Close()
}

const (
	pcapSnapLen     = 65535
	pcapReadTimeout = 500 * time.Millisecond
)

// PcapSource captures live traffic through a libpcap handle. The mutex guards
// the handle fields: the producer goroutine calls ReadPacket while Stop calls
// Close from another goroutine.
type PcapSource struct {
	mu     sync.Mutex
	handle *pcap.Handle
	source *gopacket.PacketSource
}

// NewPcapSource returns an unopened live-capture source.
func NewPcapSource() *PcapSource {
	return &PcapSource{}
}

// Open starts a live capture on iface in promiscuous mode. The short read
// timeout keeps ReadPacket from blocking indefinitely when the link is quiet.
// An already-open handle is closed before the new one is installed.
func (s *PcapSource) Open(iface, filter string) error {
	handle, err := pcap.OpenLive(iface, pcapSnapLen, true, pcapReadTimeout)
	if err != nil {
		return fmt.Errorf("open %s: %w", iface, err)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return fmt.Errorf("set filter %q: %w", filter, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Close()
	}
	s.handle = handle
	s.source = gopacket.NewPacketSource(handle, handle.LinkType())
	return nil
}

// ReadPacket holds the lock only to snapshot the packet source; the blocking
// read itself runs unlocked so Close stays callable to interrupt it.
func (s *PcapSource) ReadPacket() (gopacket.Packet, error) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return nil, errors.New("capture: source not open")
	}
	pkt, err := source.NextPacket()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ErrReadTimeout
	}
	return pkt, err
}

func (s *PcapSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
		s.source = nil
	}
}

// InterfaceInfo describes one capturable interface. Fields that cannot be
// resolved carry the "N/A" sentinel rather than failing the lookup.
type InterfaceInfo struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
}

const infoUnavailable = "N/A"

// ListInterfaces enumerates capturable interface names, preferring the pcap
// device list and falling back to the OS interface table.
func ListInterfaces() ([]string, error) {
	if devs, err := pcap.FindAllDevs(); err == nil && len(devs) > 0 {
		names := make([]string, 0, len(devs))
		for _, dev := range devs {
			names = append(names, dev.Name)
		}
		return names, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		names = append(names, iface.Name)
	}
	return names, nil
}

// LookupInterface resolves name, MAC, and IP for an interface. Lookup
// failures degrade to "N/A" values; they are never fatal.
func LookupInterface(name string) InterfaceInfo {
	info := InterfaceInfo{Name: name, MAC: infoUnavailable, IP: infoUnavailable}

	if iface, err := net.InterfaceByName(name); err == nil {
		if len(iface.HardwareAddr) > 0 {
			info.MAC = iface.HardwareAddr.String()
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
					info.IP = ipnet.IP.String()
					break
				}
			}
		}
		return info
	}

	// Pcap devices like "any" have no OS interface entry; try the pcap
	// device list for an address.
	if devs, err := pcap.FindAllDevs(); err == nil {
		for _, dev := range devs {
			if dev.Name == name && len(dev.Addresses) > 0 {
				info.IP = dev.Addresses[0].IP.String()
				break
			}
		}
	}
	return info
}
