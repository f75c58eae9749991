package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client is a non-blocking InfluxDB v2 writer. Points are batched by the
// library; failed batches are reported through SetOnError.
type Client struct {
	influx influxdb2.Client
	writer api.WriteAPI
	open   atomic.Bool

	mu      sync.Mutex
	onError func(error)
}

// Connect pings the server described by cfg. It returns ErrDisabled when
// cfg.Enabled is false.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch := defaultBatchSize
	if cfg.BatchSize > 0 {
		batch = cfg.BatchSize
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)). //nolint:gosec // positive
		SetFlushInterval(uint(flush.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	if err := ping(ctx, influx); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{influx: influx, writer: influx.WriteAPI(cfg.Org, cfg.Bucket)}
	c.open.Store(true)
	go c.forwardErrors()
	return c, nil
}

func ping(ctx context.Context, influx influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ok, err := influx.Ping(ctx)
	switch {
	case err != nil:
		return err
	case !ok:
		return ErrUnhealthy
	}
	return nil
}

func (c *Client) forwardErrors() {
	for err := range c.writer.Errors() {
		c.mu.Lock()
		fn := c.onError
		c.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetOnError registers fn for asynchronous write failures.
func (c *Client) SetOnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (c *Client) IsConnected() bool { return c.open.Load() }

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.influx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush blocks until buffered points are sent.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writer.Flush()
	}
}

// Close flushes and releases the client. Later writes are dropped.
func (c *Client) Close() error {
	if !c.open.Swap(false) {
		return nil
	}
	c.writer.Flush()
	c.influx.Close()
	return nil
}
