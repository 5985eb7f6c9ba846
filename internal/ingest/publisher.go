package ingest

import (
	"encoding/json"
	"fmt"
	"log"

	"NetSentry/internal/model"

	"github.com/nats-io/nats.go"
)

// Publisher publishes traffic observations to a NATS subject as JSON.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to NATS.
func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Publisher{nc: nc, subject: subject}, nil
}

// Publish serializes an observation and publishes it to the configured subject.
func (p *Publisher) Publish(obs *model.TrafficObservation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
