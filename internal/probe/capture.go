package probe

import (
	"fmt"
	"time"

	"NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ObservationFromPacket decodes a captured packet into a traffic observation.
// Only IPv4 TCP/UDP packets are observed; everything else is skipped.
func ObservationFromPacket(packet gopacket.Packet) (*model.TrafficObservation, error) {
	obs := &model.TrafficObservation{
		Timestamp:  time.Now().UTC(),
		PacketSize: len(packet.Data()),
	}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		obs.Timestamp = meta.Timestamp.UTC()
	}

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	ip := ipLayer.(*layers.IPv4)
	obs.SourceIP = ip.SrcIP.String()
	obs.DestinationIP = ip.DstIP.String()

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		obs.Protocol = "TCP"
		obs.SourcePort = int(tcp.SrcPort)
		obs.DestinationPort = int(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		obs.Protocol = "UDP"
		obs.SourcePort = int(udp.SrcPort)
		obs.DestinationPort = int(udp.DstPort)
	} else {
		return nil, fmt.Errorf("not a TCP or UDP packet")
	}

	return obs, nil
}
