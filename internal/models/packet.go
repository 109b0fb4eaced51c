package models

import "time"

// Protocol tags assigned by the classifier. The tag is always the transport
// (or ARP) protocol; higher-level guesses like HTTP live in ServiceHint.
const (
	ProtocolTCP     = "TCP"
	ProtocolUDP     = "UDP"
	ProtocolICMP    = "ICMP"
	ProtocolARP     = "ARP"
	ProtocolUnknown = "Unknown"
)

// AddressUnknown is the sentinel used when neither a network-layer nor a
// link-layer address could be extracted from a frame.
const AddressUnknown = "Unknown"

// PacketRecord holds the extracted information from one captured frame.
// Records are created once by the classifier and never mutated afterward.
type PacketRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Length        int       `json:"length"`
	Protocol      string    `json:"protocol"`
	SourceAddress string    `json:"src_addr"`
	DestAddress   string    `json:"dst_addr"`
	SourcePort    int       `json:"src_port,omitempty"`
	DestPort      int       `json:"dst_port,omitempty"`
	Flags         string    `json:"flags,omitempty"`
	PayloadSample string    `json:"payload,omitempty"`
	SourceMAC     string    `json:"src_mac,omitempty"`
	DestMAC       string    `json:"dst_mac,omitempty"`

	// ServiceHint is a port-based guess (HTTP, HTTPS, DNS). Display only;
	// it never replaces the Protocol tag.
	ServiceHint string `json:"service_hint,omitempty"`

	Summary string `json:"summary"`
}

// HasPorts reports whether the record carries transport ports.
// Only TCP and UDP records do.
func (r PacketRecord) HasPorts() bool {
	return r.Protocol == ProtocolTCP || r.Protocol == ProtocolUDP
}
