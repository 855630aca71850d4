// Package broker moves captures and measurements over message brokers:
// raw captures arrive over MQTT from bedside devices, finished measurements
// leave over NATS.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/models"
)

const (
	CaptureTopicPrefix = "oscillobp/capture/"
	// CaptureTopic matches the capture topic of every patient.
	CaptureTopic = CaptureTopicPrefix + "+"

	captureQoS     = 1
	connectTimeout = 10 * time.Second
)

var ErrInvalidCapture = errors.New("invalid capture payload")

// CaptureTopicFor returns the topic a device publishes patient's captures to.
func CaptureTopicFor(patient string) string {
	p := strings.TrimSpace(patient)
	if p == "" {
		p = models.DefaultPatient
	}
	return CaptureTopicPrefix + p
}

// EncodeCapture renders c as the JSON capture payload.
func EncodeCapture(c models.Capture) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCapture parses a capture payload. A missing patient falls back to
// the last topic segment.
func DecodeCapture(topic string, payload []byte) (models.Capture, error) {
	var c models.Capture
	if err := json.Unmarshal(payload, &c); err != nil {
		return models.Capture{}, fmt.Errorf("%w: %v", ErrInvalidCapture, err)
	}
	if len(c.Samples) == 0 {
		return models.Capture{}, fmt.Errorf("%w: no pressure_data", ErrInvalidCapture)
	}
	if c.SamplingRate < 0 {
		return models.Capture{}, fmt.Errorf("%w: sampling rate %v", ErrInvalidCapture, c.SamplingRate)
	}
	if strings.TrimSpace(c.Patient) == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
			c.Patient = topic[i+1:]
		}
	}
	return c, nil
}

// CaptureHandler processes one decoded capture.
type CaptureHandler func(ctx context.Context, c models.Capture) error

// Subscriber feeds captures published on CaptureTopic to a handler.
type Subscriber struct {
	client  mqtt.Client
	handler CaptureHandler
	log     *logger.Logger
}

// NewSubscriber connects to broker (e.g. "tcp://localhost:1883") and
// subscribes to CaptureTopic, resubscribing after every reconnect.
func NewSubscriber(broker string, handler CaptureHandler) (*Subscriber, error) {
	if handler == nil {
		return nil, errors.New("nil capture handler")
	}
	s := &Subscriber{handler: handler, log: logger.With("mqtt")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("oscillobp-ingest-%d", time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnect = func(c mqtt.Client) {
		token := c.Subscribe(CaptureTopic, captureQoS, s.onMessage)
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			s.log.Errorf("subscribing to %s: %v", CaptureTopic, token.Error())
			return
		}
		s.log.Infof("subscribed to %s", CaptureTopic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.log.Warnf("connection lost: %v", err)
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", broker, token.Error())
	}
	if !s.client.IsConnected() {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timed out", broker)
	}
	return s, nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.dispatch(msg.Topic(), msg.Payload())
}

func (s *Subscriber) dispatch(topic string, payload []byte) {
	c, err := DecodeCapture(topic, payload)
	if err != nil {
		s.log.Warnf("dropping message on %s: %v", topic, err)
		return
	}
	if err := s.handler(context.Background(), c); err != nil {
		s.log.Errorf("handling capture for %s: %v", c.Patient, err)
	}
}

func (s *Subscriber) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Unsubscribe(CaptureTopic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
}

// CapturePublisher sends captures to CaptureTopicFor(patient).
type CapturePublisher struct {
	client mqtt.Client
}

func NewCapturePublisher(broker, clientID string) (*CapturePublisher, error) {
	log := logger.With("mqtt")
	if clientID == "" {
		clientID = fmt.Sprintf("oscillobp-device-%d", time.Now().UnixNano())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warnf("connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", broker, token.Error())
	}
	return &CapturePublisher{client: client}, nil
}

func (p *CapturePublisher) Publish(c models.Capture) error {
	payload, err := EncodeCapture(c)
	if err != nil {
		return fmt.Errorf("encoding capture: %w", err)
	}
	token := p.client.Publish(CaptureTopicFor(c.Patient), captureQoS, false, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publishing capture: timed out")
	}
	return token.Error()
}

func (p *CapturePublisher) Close() {
	p.client.Disconnect(250)
}
