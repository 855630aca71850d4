// Command cuffsim emulates the cuff controller: GET /start answers with a
// simulated deflation, and with -mqtt it also publishes captures the way a
// networked monitor would.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/broker"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/simulate"
)

var (
	port       int
	status     string
	delay      time.Duration
	mqttBroker string
	patient    string
	interval   time.Duration
	profile    = simulate.DefaultProfile()
)

func init() {
	flag.IntVar(&port, "port", 8090, "HTTP port")
	flag.StringVar(&status, "status", device.StatusOK, "Status to report: ok, low_pressure or high_pressure")
	flag.DurationVar(&delay, "delay", 0, "Wait before answering, as a real inflation would")
	flag.StringVar(&mqttBroker, "mqtt", os.Getenv("OSCILLOBP_MQTT_BROKER"), "MQTT broker to publish captures to (empty disables)")
	flag.StringVar(&patient, "patient", "", "Patient name for published captures")
	flag.DurationVar(&interval, "interval", time.Minute, "Time between published captures")

	flag.Float64Var(&profile.SBP, "sbp", profile.SBP, "Systolic pressure (mmHg)")
	flag.Float64Var(&profile.MAP, "map", profile.MAP, "Mean arterial pressure (mmHg)")
	flag.Float64Var(&profile.DBP, "dbp", profile.DBP, "Diastolic pressure (mmHg)")
	flag.Float64Var(&profile.PulseRate, "pulse", profile.PulseRate, "Pulse rate (bpm)")
	flag.Float64Var(&profile.Noise, "noise", 0.05, "Gaussian noise standard deviation (mmHg)")
}

// simulator serves one deflation per request, each with a fresh seed.
type simulator struct {
	profile simulate.Profile
	status  string
	delay   time.Duration
	seed    atomic.Int64
	log     *logger.Logger
}

func (s *simulator) next() (models.Capture, error) {
	p := s.profile
	p.Seed = s.seed.Add(1)
	samples, err := simulate.Deflation(p)
	if err != nil {
		return models.Capture{}, err
	}
	return models.Capture{Patient: patient, SamplingRate: p.SamplingRate, Samples: samples}, nil
}

func (s *simulator) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	resp := device.Response{Status: s.status}
	if s.status == device.StatusOK {
		c, err := s.next()
		if err != nil {
			s.log.Errorf("Simulation failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.PressureData = c.Samples
		resp.SamplingRate = c.SamplingRate
	}

	s.log.Infof("Measurement requested from %s: status %s, %d samples", r.RemoteAddr, resp.Status, len(resp.PressureData))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *simulator) publishLoop(pub *broker.CapturePublisher, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		c, err := s.next()
		if err != nil {
			s.log.Errorf("Simulation failed: %v", err)
		} else if err := pub.Publish(c); err != nil {
			s.log.Warnf("Failed to publish capture: %v", err)
		} else {
			s.log.Infof("Published capture of %d samples to %s", len(c.Samples), broker.CaptureTopicFor(c.Patient))
		}
		<-ticker.C
	}
}

func main() {
	flag.Parse()
	log := logger.With("cuffsim")

	switch status {
	case device.StatusOK, device.StatusLowPressure, device.StatusHighPressure:
	default:
		log.Fatalf("Unknown status %q", status)
	}
	if err := profile.Validate(); err != nil {
		log.Fatalf("Invalid profile: %v", err)
	}

	sim := &simulator{profile: profile, status: status, delay: delay, log: log}

	if mqttBroker != "" {
		pub, err := broker.NewCapturePublisher(mqttBroker, "cuffsim")
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		defer pub.Close()
		go sim.publishLoop(pub, interval)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/start", sim.handleStart)

	addr := fmt.Sprintf(":%d", port)
	log.Infof("Cuff simulator on %s: %.0f/%.0f mmHg, pulse %.0f bpm, status %s",
		addr, profile.SBP, profile.DBP, profile.PulseRate, status)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
