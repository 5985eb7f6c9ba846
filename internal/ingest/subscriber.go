package ingest

import (
	"encoding/json"
	"log"

	"NetSentry/internal/model"

	"github.com/nats-io/nats.go"
)

// ObservationHandler processes a received traffic observation.
type ObservationHandler func(obs model.TrafficObservation)

// Subscriber consumes traffic observations from a NATS subject.
type Subscriber struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

// NewSubscriber connects to NATS.
func NewSubscriber(url string) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Subscriber{nc: nc}, nil
}

// Start subscribes to the subject and feeds decoded observations to handler.
func (s *Subscriber) Start(subject string, handler ObservationHandler) error {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var obs model.TrafficObservation
		if err := json.Unmarshal(msg.Data, &obs); err != nil {
			log.Printf("Error unmarshalling observation: %v", err)
			return
		}
		handler(obs)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for observations...", subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
