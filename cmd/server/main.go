package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/broker"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/storage"
)

var (
	port           int
	dbPath         string
	deviceURL      string
	deviceTimeout  time.Duration
	samplingRate   float64
	allowedOrigins string
	mqttBroker     string
	natsURL        string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("OSCILLOBP_DB_PATH", storage.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&deviceURL, "device", getEnvOrDefault("OSCILLOBP_DEVICE_URL", device.DefaultURL), "Cuff controller start URL")
	flag.DurationVar(&deviceTimeout, "device-timeout", device.DefaultTimeout, "Timeout for one measurement on the cuff controller")
	flag.Float64Var(&samplingRate, "rate", envFloat("OSCILLOBP_SAMPLING_RATE", pipeline.DefaultSamplingRate), "Sampling rate assumed when a recording does not carry one (Hz)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.StringVar(&mqttBroker, "mqtt", os.Getenv("OSCILLOBP_MQTT_BROKER"), "MQTT broker for capture ingest, e.g. tcp://localhost:1883 (empty disables)")
	flag.StringVar(&natsURL, "nats", os.Getenv("OSCILLOBP_NATS_URL"), "NATS server for measurement events (empty disables)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.With("main")

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	opts := []oscillobp.Option{
		oscillobp.WithDBPath(dbPath),
		oscillobp.WithDeviceURL(deviceURL),
		oscillobp.WithDeviceTimeout(deviceTimeout),
		oscillobp.WithSamplingRate(samplingRate),
	}

	if natsURL != "" {
		pub, err := broker.NewNATSPublisher(natsURL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer pub.Close()
		opts = append(opts, oscillobp.WithPublisher(pub))
		log.Infof("Publishing measurements to %s on %s", natsURL, broker.MeasurementSubject)
	}

	service, err := oscillobp.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	if mqttBroker != "" {
		sub, err := broker.NewSubscriber(mqttBroker, func(ctx context.Context, c models.Capture) error {
			_, err := service.Ingest(ctx, c)
			return err
		})
		if err != nil {
			log.Fatalf("Failed to subscribe to MQTT broker: %v", err)
		}
		defer sub.Close()
		log.Infof("Ingesting captures from %s on %s", mqttBroker, broker.CaptureTopic)
	}

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		DeviceURL:      deviceURL,
		SamplingRate:   samplingRate,
		AllowedOrigins: origins,
		Location:       time.Local,
		MeasureTimeout: deviceTimeout + 10*time.Second,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
