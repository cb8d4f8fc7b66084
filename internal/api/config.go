package api

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the configuration for the Collector client.
// Config is passed as a constructor argument; the CA bundle is the only file
// this package reads.
type Config struct {
	// BaseURL is the collector API base URL.
	// Default: "https://www.plexapm.com/api"
	BaseURL string

	// AppID and APIKey are sent as HTTP basic auth credentials.
	AppID  string
	APIKey string

	// CAFile is a PEM bundle used instead of the system roots to verify the
	// collector's certificate.
	CAFile string

	// ConnectTimeout is the maximum time to wait for a TCP connection.
	// Default: 10s
	ConnectTimeout time.Duration

	// RequestTimeout bounds a complete request/response cycle. Zero means no
	// limit; transmissions are only bounded by the caller's context.
	RequestTimeout time.Duration
}

// DefaultBaseURL is the public collector endpoint.
const DefaultBaseURL = "https://www.plexapm.com/api"

// DefaultConnectTimeout is the default TCP connect timeout.
const DefaultConnectTimeout = 10 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("api: config: BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api: config: BaseURL %q must be an absolute http(s) URL", c.BaseURL)
	}
	if c.ConnectTimeout < 0 {
		return errors.New("api: config: ConnectTimeout must not be negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("api: config: RequestTimeout must not be negative")
	}
	return nil
}
