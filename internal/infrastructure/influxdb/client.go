package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Batching defaults when the config leaves them unset.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// writeErrorWindow is how long a failed batch keeps HealthCheck failing.
	writeErrorWindow = time.Minute
)

// Stats counts telemetry activity since Connect.
type Stats struct {
	Queued      uint64
	Failed      uint64
	LastError   string
	LastErrorAt time.Time
}

// Client is the telemetry sink for sensor readings.
//
// Points are queued on the library's non-blocking write API and sent in
// batches, so an observer on the sampling path never waits on the network.
// Failed batches are counted and reported through SetOnError and HealthCheck.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
	stats     Stats
	now       func() time.Time
}

// Connect pings the server and opens a batched write API for cfg.Bucket.
// tags are added to every point, typically the site and node IDs.
//
// Returns ErrDisabled when cfg.Enabled is false and ErrConnectionFailed when
// the server does not answer within the connect timeout.
func Connect(cfg config.InfluxDBConfig, tags map[string]string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, tags))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		connected: true,
		now:       time.Now,
	}
	go c.drainErrors(c.writeAPI.Errors())

	return c, nil
}

// clientOptions builds batching options and default tags from cfg.
func clientOptions(cfg config.InfluxDBConfig, tags map[string]string) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) //nolint:gosec // checked positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) //nolint:gosec // positive duration
	for k, v := range tags {
		if v != "" {
			opts.AddDefaultTag(k, v)
		}
	}
	return opts
}

// drainErrors records async batch failures until the write API closes.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.recordError(err)
	}
}

func (c *Client) recordError(err error) {
	c.mu.Lock()
	c.stats.Failed++
	c.stats.LastError = err.Error()
	c.stats.LastErrorAt = c.clock()
	callback := c.onError
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

func (c *Client) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Stats returns a snapshot of the write counters.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close flushes queued points and closes the client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck fails if a batch failed within the last minute or the server
// does not answer a ping.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.recentWriteError(); err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// recentWriteError returns ErrWriteFailing while the last batch failure is
// inside writeErrorWindow.
func (c *Client) recentWriteError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stats.LastErrorAt.IsZero() || c.clock().Sub(c.stats.LastErrorAt) > writeErrorWindow {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrWriteFailing, c.stats.LastError)
}

// IsConnected reports whether Connect succeeded and Close has not been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback for failed batches, typically to log them.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until queued points are written. No-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
