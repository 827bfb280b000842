// Package grpcclient is the client for a remote text recognizer served over gRPC.
package grpcclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/resilience"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

// Config holds connection settings.
type Config struct {
	KeepaliveTime       time.Duration
	KeepaliveTimeout    time.Duration
	HealthCheckInterval time.Duration
}

// DefaultConfig returns the default connection settings.
func DefaultConfig() Config {
	return Config{
		KeepaliveTime:       DefaultKeepaliveTime,
		KeepaliveTimeout:    DefaultKeepaliveTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
	}
}

// Client calls a remote recognizer and tracks its health.
type Client struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	healthy atomic.Bool

	stopHealth context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a client for addr. The connection is lazy; use WaitReady to
// block until the recognizer reports SERVING. Extra dial options are appended
// after the defaults.
func New(addr string, cfg Config, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(MaxMessageSize),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "recognizer address %q", addr)
	}

	c := &Client{conn: conn, health: healthpb.NewHealthClient(conn)}
	if cfg.HealthCheckInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopHealth = cancel
		c.wg.Add(1)
		go c.monitorHealth(ctx, cfg.HealthCheckInterval)
	}
	return c, nil
}

// ExtractText sends a PNG image and returns the recognized text. An empty
// string means the recognizer found no text.
func (c *Client) ExtractText(ctx context.Context, png []byte, language string) (string, error) {
	if language != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, LanguageKey, language)
	}
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, ExtractTextMethod, wrapperspb.Bytes(png), out); err != nil {
		return "", apperrors.FromGRPCError(err)
	}
	return out.GetValue(), nil
}

// Check asks the recognizer for its serving status once.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.CodeUnavailable, "recognizer status %s", resp.GetStatus())
	}
	return nil
}

// WaitReady retries Check with backoff until the recognizer is serving.
func (c *Client) WaitReady(ctx context.Context) error {
	err := resilience.Retry(ctx, resilience.ConnectRetryConfig(), c.Check)
	c.setHealthy(err == nil)
	return err
}

// Healthy reports the last observed health status.
func (c *Client) Healthy() bool { return c.healthy.Load() }

func (c *Client) setHealthy(ok bool) {
	if c.healthy.Swap(ok) != ok {
		if ok {
			slog.Info("recognizer healthy", "target", c.conn.Target())
		} else {
			slog.Warn("recognizer unhealthy", "target", c.conn.Target())
		}
	}
}

func (c *Client) monitorHealth(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.setHealthy(c.Check(ctx) == nil)
		}
	}
}

// Close stops health monitoring and closes the connection.
func (c *Client) Close() error {
	if c.stopHealth != nil {
		c.stopHealth()
	}
	c.wg.Wait()
	return c.conn.Close()
}
