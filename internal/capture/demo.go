package capture

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// DemoSource synthesizes plausible traffic so the viewers can be exercised
// without capture privileges. It satisfies PacketSource.
type DemoSource struct {
	rng       *rand.Rand
	done      chan struct{}
	closeOnce sync.Once
}

// NewDemoSource returns a demo source seeded from the clock.
func NewDemoSource() *DemoSource {
	return &DemoSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Open accepts any interface name and ignores the filter.
func (s *DemoSource) Open(iface, filter string) error {
	s.done = make(chan struct{})
	s.closeOnce = sync.Once{}
	return nil
}

// ReadPacket emits a synthetic frame after a randomized delay, or io.EOF once
// the source is closed.
func (s *DemoSource) ReadPacket() (gopacket.Packet, error) {
	if s.done == nil {
		return nil, errors.New("capture: source not open")
	}
	delay := time.Duration(100+s.rng.Intn(900)) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-s.done:
		return nil, io.EOF
	case <-timer.C:
	}

	frame, err := s.randomFrame()
	if err != nil {
		return nil, fmt.Errorf("build demo frame: %w", err)
	}
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default), nil
}

func (s *DemoSource) Close() {
	if s.done == nil {
		return
	}
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *DemoSource) randomFrame() ([]byte, error) {
	switch s.rng.Intn(10) {
	case 0:
		return s.arpFrame()
	case 1:
		return s.icmpFrame()
	case 2, 3:
		return s.udpFrame()
	default:
		return s.tcpFrame()
	}
}

func (s *DemoSource) randomIP(prefix string) net.IP {
	return net.ParseIP(fmt.Sprintf("%s.%d", prefix, s.rng.Intn(254)+1))
}

func (s *DemoSource) randomMAC() net.HardwareAddr {
	return net.HardwareAddr{0x00, 0x1a, 0x2b, byte(s.rng.Intn(256)), byte(s.rng.Intn(256)), byte(s.rng.Intn(256))}
}

func (s *DemoSource) ethernet(ethType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       s.randomMAC(),
		DstMAC:       s.randomMAC(),
		EthernetType: ethType,
	}
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *DemoSource) tcpFrame() ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    s.randomIP("192.168.1"),
		DstIP:    s.randomIP("10.0.0"),
	}
	dstPorts := []int{80, 443, 22, 8080}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(s.rng.Intn(64511) + 1024),
		DstPort: layers.TCPPort(dstPorts[s.rng.Intn(len(dstPorts))]),
		Window:  65535,
	}
	switch s.rng.Intn(4) {
	case 0:
		tcp.SYN = true
	case 1:
		tcp.SYN, tcp.ACK = true, true
	case 2:
		tcp.ACK, tcp.PSH = true, true
	default:
		tcp.ACK = true
	}
	tcp.SetNetworkLayerForChecksum(ip)

	payload := make([]byte, s.rng.Intn(400)+40)
	s.rng.Read(payload)
	return serialize(s.ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

func (s *DemoSource) udpFrame() ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    s.randomIP("192.168.1"),
		DstIP:    s.randomIP("10.0.0"),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(s.rng.Intn(64511) + 1024),
		DstPort: layers.UDPPort(53),
	}
	udp.SetNetworkLayerForChecksum(ip)

	payload := make([]byte, s.rng.Intn(100)+20)
	s.rng.Read(payload)
	return serialize(s.ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(payload))
}

func (s *DemoSource) icmpFrame() ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    s.randomIP("192.168.1"),
		DstIP:    s.randomIP("10.0.0"),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Seq:      uint16(s.rng.Intn(1 << 16)),
	}
	return serialize(s.ethernet(layers.EthernetTypeIPv4), ip, icmp)
}

func (s *DemoSource) arpFrame() ([]byte, error) {
	srcMAC := s.randomMAC()
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: s.randomIP("192.168.1").To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    s.randomIP("192.168.1").To4(),
	}
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	return serialize(eth, arp)
}
