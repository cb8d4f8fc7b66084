// Package api is the HTTP client for the telemetry collector.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	// gzipThreshold is the minimum body size for gzip compression.
	gzipThreshold = 1024 // 1 KiB

	// maxResponseSize is the maximum decompressed response body size (1 MiB).
	maxResponseSize = 1 << 20

	// userAgentPrefix is the User-Agent header prefix.
	userAgentPrefix = "plexapm/"
)

// Collector posts samples to the collector API.
type Collector struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	apiKey     string
	version    string
	logger     *slog.Logger
}

// NewCollector creates a Collector with the given configuration.
func NewCollector(cfg Config, version string, logger *slog.Logger) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsCfg,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		DisableCompression:  true,
	}

	if cfg.AppID == "" {
		logger.Warn("no app id configured, samples will be rejected by the collector")
	}

	return &Collector{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		version: version,
		logger:  logger,
	}, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("api: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("api: CA bundle %s contains no certificates", path)
	}
	return pool, nil
}

// BaseURL returns the collector URL requests are sent to.
func (c *Collector) BaseURL() string {
	return c.baseURL
}

// PostJSON sends body as JSON to path. When result is non-nil the response is
// decoded into it.
func (c *Collector) PostJSON(ctx context.Context, path string, body any, result any) error {
	resp, err := c.sendRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(path, resp)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}

	var reader io.Reader = io.LimitReader(resp.Body, maxResponseSize)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("api: gzip decompress response: %w", err)
		}
		defer gr.Close()
		reader = io.LimitReader(gr, maxResponseSize)
	}
	if err := json.NewDecoder(reader).Decode(result); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// sendRequest builds and executes an HTTP request with standard headers,
// JSON body marshaling, and gzip compression for large payloads.
func (c *Collector) sendRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("api: marshal request body: %w", err)
	}

	var bodyReader io.Reader = bytes.NewReader(data)
	compressed := len(data) > gzipThreshold
	if compressed {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return nil, fmt.Errorf("api: gzip compress request: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("api: gzip close: %w", err)
		}
		bodyReader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("api: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgentPrefix+c.version)
	if c.appID != "" {
		req.SetBasicAuth(c.appID, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	return resp, nil
}
