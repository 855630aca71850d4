package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/nats-io/nats.go"
)

// MeasurementSubject carries one MeasurementEvent per stored measurement.
const MeasurementSubject = "oscillobp.measurements"

const EventMeasurementCreated = "measurement.created"

type MeasurementEvent struct {
	Type        string             `json:"type"`
	Measurement models.Measurement `json:"measurement"`
	SentAt      time.Time          `json:"sent_at"`
}

func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("oscillobp"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// EncodeMeasurement renders the event published for m.
func EncodeMeasurement(m models.Measurement, sentAt time.Time) ([]byte, error) {
	return json.Marshal(MeasurementEvent{
		Type:        EventMeasurementCreated,
		Measurement: m,
		SentAt:      sentAt.UTC(),
	})
}

// NATSPublisher publishes measurement events to MeasurementSubject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := ConnectNATS(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, subject: MeasurementSubject}, nil
}

func (p *NATSPublisher) PublishMeasurement(ctx context.Context, m models.Measurement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeMeasurement(m, time.Now())
	if err != nil {
		return fmt.Errorf("encoding measurement: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
