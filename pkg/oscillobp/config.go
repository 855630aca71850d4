package oscillobp

import (
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/storage"
)

type Config struct {
	DBPath        string
	SamplingRate  float64
	DeviceURL     string
	DeviceTimeout time.Duration
	// Location is the time zone used to group measurements by day and
	// month and to print them.
	Location  *time.Location
	Clock     func() time.Time
	Logger    Logger
	Storage   Storage
	Acquirer  Acquirer
	Publisher Publisher
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithSamplingRate sets the rate assumed for captures that do not carry one.
func WithSamplingRate(fs float64) Option {
	return func(c *Config) {
		c.SamplingRate = fs
	}
}

func WithDeviceURL(url string) Option {
	return func(c *Config) {
		c.DeviceURL = url
	}
}

func WithDeviceTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DeviceTimeout = d
	}
}

func WithLocation(loc *time.Location) Option {
	return func(c *Config) {
		c.Location = loc
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithAcquirer replaces the HTTP cuff controller client.
func WithAcquirer(a Acquirer) Option {
	return func(c *Config) {
		c.Acquirer = a
	}
}

// WithPublisher announces every stored measurement, e.g. over NATS.
func WithPublisher(p Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        storage.DefaultDBFile,
		SamplingRate:  pipeline.DefaultSamplingRate,
		DeviceURL:     device.DefaultURL,
		DeviceTimeout: device.DefaultTimeout,
		Location:      time.Local,
		Clock:         time.Now,
	}
}
