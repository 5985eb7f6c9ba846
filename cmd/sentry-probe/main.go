package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"NetSentry/internal/ingest"
	"NetSentry/internal/model"
	"NetSentry/internal/probe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/nats-io/nats.go"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = pcap.BlockForever
)

func main() {
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (required for pub mode).")
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL.")
	subject := flag.String("subject", "netsentry.observations", "NATS subject for observations.")
	flag.Parse()

	switch *mode {
	case "pub":
		runProbe(*iface, *natsURL, *subject)
	case "sub":
		runSubscriber(*natsURL, *subject)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe captures packets on the given interface and publishes the decoded
// observations to NATS for the API server to score.
func runProbe(interfaceName, natsURL, subject string) {
	if interfaceName == "" {
		log.Println("Error: -iface flag is required for pub mode.")
		flag.Usage()
		os.Exit(1)
	}
	log.Printf("Starting sentry-probe in PROBE mode on interface: %s", interfaceName)

	pub, err := ingest.NewPublisher(natsURL, subject)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	handle, err := pcap.OpenLive(interfaceName, snapshotLen, promiscuous, timeout)
	if err != nil {
		log.Fatalf("Error opening device %s: %v", interfaceName, err)
	}
	defer handle.Close()

	log.Println("Capture started successfully. Publishing observations to NATS...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
		published := 0
		for packet := range packetSource.Packets() {
			obs, err := probe.ObservationFromPacket(packet)
			if err != nil {
				continue // Skip non-IPv4 / non-TCP-UDP packets
			}
			if err := pub.Publish(obs); err != nil {
				log.Printf("Failed to publish observation: %v", err)
			}
			published++
			if published%1000 == 0 {
				log.Printf("%d observations published...", published)
			}
		}
	}()

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}

// runSubscriber taps the observation stream and prints what flows through it.
func runSubscriber(natsURL, subject string) {
	log.Println("Starting sentry-probe in SUBSCRIBER mode...")

	sub, err := ingest.NewSubscriber(natsURL)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	handler := func(obs model.TrafficObservation) {
		log.Printf("Received Observation: %s:%d -> %s:%d %s (%d bytes)",
			obs.SourceIP, obs.SourcePort, obs.DestinationIP, obs.DestinationPort, obs.Protocol, obs.PacketSize)
	}

	if err := sub.Start(subject, handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}
