package capture

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"gosniff/internal/models"
)

// payloadSampleBytes bounds the hex preview of application payload.
const payloadSampleBytes = 100

// Classify extracts a PacketRecord from one captured frame. It never fails:
// anything it cannot parse is left at its Unknown/absent default. Decision
// order is IP first (TCP, then UDP, then ICMP; first match wins), ARP when no
// IP layer is present, with link-layer addresses always attempted as a
// supplement.
func Classify(pkt gopacket.Packet) models.PacketRecord {
	rec := models.PacketRecord{
		Timestamp:     time.Now(),
		Protocol:      models.ProtocolUnknown,
		SourceAddress: models.AddressUnknown,
		DestAddress:   models.AddressUnknown,
	}
	if pkt == nil {
		rec.Summary = "empty frame"
		return rec
	}

	if md := pkt.Metadata(); md != nil {
		if !md.Timestamp.IsZero() {
			rec.Timestamp = md.Timestamp
		}
		rec.Length = md.Length
	}
	if rec.Length == 0 {
		rec.Length = len(pkt.Data())
	}

	if ethLayer := pkt.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		eth := ethLayer.(*layers.Ethernet)
		rec.SourceMAC = eth.SrcMAC.String()
		rec.DestMAC = eth.DstMAC.String()
	}

	hasIP := false
	if ip4Layer := pkt.Layer(layers.LayerTypeIPv4); ip4Layer != nil {
		ip := ip4Layer.(*layers.IPv4)
		rec.SourceAddress = ip.SrcIP.String()
		rec.DestAddress = ip.DstIP.String()
		hasIP = true
	} else if ip6Layer := pkt.Layer(layers.LayerTypeIPv6); ip6Layer != nil {
		ip := ip6Layer.(*layers.IPv6)
		rec.SourceAddress = ip.SrcIP.String()
		rec.DestAddress = ip.DstIP.String()
		hasIP = true
	}

	switch {
	case hasIP:
		classifyTransport(pkt, &rec)
	case pkt.Layer(layers.LayerTypeARP) != nil:
		classifyARP(pkt.Layer(layers.LayerTypeARP).(*layers.ARP), &rec)
	}

	// A pure layer-2 frame still gets usable addresses.
	if rec.SourceAddress == models.AddressUnknown && rec.SourceMAC != "" {
		rec.SourceAddress = rec.SourceMAC
	}
	if rec.DestAddress == models.AddressUnknown && rec.DestMAC != "" {
		rec.DestAddress = rec.DestMAC
	}

	if app := pkt.ApplicationLayer(); app != nil && len(app.Payload()) > 0 {
		payload := app.Payload()
		if len(payload) > payloadSampleBytes {
			payload = payload[:payloadSampleBytes]
		}
		rec.PayloadSample = hex.EncodeToString(payload)
	}

	rec.ServiceHint = serviceHint(rec)
	rec.Summary = summarize(rec)
	return rec
}

func classifyTransport(pkt gopacket.Packet, rec *models.PacketRecord) {
	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		rec.Protocol = models.ProtocolTCP
		rec.SourcePort = int(tcp.SrcPort)
		rec.DestPort = int(tcp.DstPort)
		rec.Flags = tcpFlags(tcp)
		return
	}
	if udpLayer := pkt.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		rec.Protocol = models.ProtocolUDP
		rec.SourcePort = int(udp.SrcPort)
		rec.DestPort = int(udp.DstPort)
		return
	}
	if pkt.Layer(layers.LayerTypeICMPv4) != nil || pkt.Layer(layers.LayerTypeICMPv6) != nil {
		rec.Protocol = models.ProtocolICMP
	}
}

// classifyARP fills protocol addresses from the ARP payload. The hardware
// addresses stay in the MAC fields.
func classifyARP(arp *layers.ARP, rec *models.PacketRecord) {
	rec.Protocol = models.ProtocolARP
	if len(arp.SourceProtAddress) > 0 {
		rec.SourceAddress = net.IP(arp.SourceProtAddress).String()
	}
	if len(arp.DstProtAddress) > 0 {
		rec.DestAddress = net.IP(arp.DstProtAddress).String()
	}
	if rec.SourceMAC == "" && len(arp.SourceHwAddress) > 0 {
		rec.SourceMAC = net.HardwareAddr(arp.SourceHwAddress).String()
	}
	if rec.DestMAC == "" && len(arp.DstHwAddress) > 0 {
		rec.DestMAC = net.HardwareAddr(arp.DstHwAddress).String()
	}
}

func tcpFlags(tcp *layers.TCP) string {
	var flags []string
	if tcp.SYN {
		flags = append(flags, "SYN")
	}
	if tcp.ACK {
		flags = append(flags, "ACK")
	}
	if tcp.FIN {
		flags = append(flags, "FIN")
	}
	if tcp.RST {
		flags = append(flags, "RST")
	}
	if tcp.PSH {
		flags = append(flags, "PSH")
	}
	if tcp.URG {
		flags = append(flags, "URG")
	}
	return strings.Join(flags, "|")
}

// serviceHint guesses a well-known service from the ports. Advisory only.
func serviceHint(rec models.PacketRecord) string {
	if !rec.HasPorts() {
		return ""
	}
	for _, port := range []int{rec.DestPort, rec.SourcePort} {
		switch port {
		case 80:
			return "HTTP"
		case 443:
			return "HTTPS"
		case 53:
			return "DNS"
		}
	}
	return ""
}

func summarize(rec models.PacketRecord) string {
	switch {
	case rec.HasPorts():
		s := fmt.Sprintf("%s %s:%d > %s:%d len=%d",
			rec.Protocol, rec.SourceAddress, rec.SourcePort, rec.DestAddress, rec.DestPort, rec.Length)
		if rec.Flags != "" {
			s += " [" + rec.Flags + "]"
		}
		return s
	case rec.Protocol == models.ProtocolARP:
		return fmt.Sprintf("ARP %s > %s", rec.SourceAddress, rec.DestAddress)
	default:
		return fmt.Sprintf("%s %s > %s len=%d",
			rec.Protocol, rec.SourceAddress, rec.DestAddress, rec.Length)
	}
}
