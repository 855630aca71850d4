package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/simulate"
)

func setupSimulator(t *testing.T, status string) *device.Client {
	t.Helper()
	sim := &simulator{profile: simulate.DefaultProfile(), status: status, log: logger.Discard()}

	mux := http.NewServeMux()
	mux.HandleFunc("/start", sim.handleStart)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return device.NewClient(srv.URL + "/start")
}

func TestSimulatorServesDeflation(t *testing.T) {
	client := setupSimulator(t, device.StatusOK)

	c, err := client.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire from simulator: %v", err)
	}
	if len(c.Samples) != 3000 || c.SamplingRate != 100 {
		t.Fatalf("Expected 3000 samples at 100 Hz, got %d at %v", len(c.Samples), c.SamplingRate)
	}

	res := pipeline.Estimate(c.Samples, c.SamplingRate)
	if !res.OK() {
		t.Fatal("Expected the simulated deflation to produce an estimate")
	}
}

func TestSimulatorStatus(t *testing.T) {
	tests := []struct {
		status string
		want   error
	}{
		{device.StatusLowPressure, device.ErrLowPressure},
		{device.StatusHighPressure, device.ErrHighPressure},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			client := setupSimulator(t, tt.status)
			if _, err := client.Acquire(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSimulatorVariesSeed(t *testing.T) {
	p := simulate.DefaultProfile()
	p.Noise = 0.1
	sim := &simulator{profile: p, status: device.StatusOK, log: logger.Discard()}

	a, err := sim.next()
	if err != nil {
		t.Fatalf("Simulation failed: %v", err)
	}
	b, _ := sim.next()
	if a.Samples[100] == b.Samples[100] {
		t.Error("Expected consecutive captures to differ in noise")
	}
}

func TestSimulatorRejectsPost(t *testing.T) {
	sim := &simulator{profile: simulate.DefaultProfile(), status: device.StatusOK, log: logger.Discard()}
	rec := httptest.NewRecorder()
	sim.handleStart(rec, httptest.NewRequest(http.MethodPost, "/start", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
