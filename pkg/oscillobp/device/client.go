// Package device talks to the cuff controller that inflates the cuff,
// records the deflation and returns the raw pressure samples.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/models"
)

const (
	DefaultURL     = "http://192.168.75.148/start"
	DefaultTimeout = 120 * time.Second

	// maxResponseBytes bounds the JSON body read from the controller.
	maxResponseBytes = 16 << 20
)

// Controller status values.
const (
	StatusOK           = "ok"
	StatusLowPressure  = "low_pressure"
	StatusHighPressure = "high_pressure"
)

var (
	ErrLowPressure    = errors.New("cuff pressure too low, inflate the cuff and try again")
	ErrHighPressure   = errors.New("cuff pressure too high, deflate the cuff and try again")
	ErrNoPressureData = errors.New("device response does not contain pressure data")
	ErrDeviceStatus   = errors.New("device returned an error status")
)

// Response is the JSON document the controller answers with.
type Response struct {
	Status       string    `json:"status"`
	PressureData []float64 `json:"pressure_data"`
	SamplingRate float64   `json:"sampling_rate,omitempty"`
}

// Client starts measurements on one controller.
type Client struct {
	url          string
	httpClient   *http.Client
	samplingRate float64
}

type Option func(*Client)

// WithTimeout bounds a whole measurement, inflation to response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSamplingRate sets the rate assumed when the controller omits it.
func WithSamplingRate(fs float64) Option {
	return func(c *Client) {
		if fs > 0 {
			c.samplingRate = fs
		}
	}
}

func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:          url,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		samplingRate: 100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) URL() string { return c.url }

// Acquire triggers one measurement and waits for the recording.
func (c *Client) Acquire(ctx context.Context) (*models.Capture, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building device request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting device at %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s", ErrDeviceStatus, resp.Status)
	}

	var body Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding device response: %w", err)
	}
	return body.capture(c.samplingRate)
}

func (r Response) capture(fallbackRate float64) (*models.Capture, error) {
	switch r.Status {
	case StatusLowPressure:
		return nil, ErrLowPressure
	case StatusHighPressure:
		return nil, ErrHighPressure
	}
	if len(r.PressureData) == 0 {
		return nil, ErrNoPressureData
	}
	fs := r.SamplingRate
	if fs <= 0 {
		fs = fallbackRate
	}
	return &models.Capture{Samples: r.PressureData, SamplingRate: fs}, nil
}
