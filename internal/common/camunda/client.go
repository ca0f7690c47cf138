// Package camunda connects the form service to the Zeebe broker that runs
// the submission review process.
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dynamic-forms/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const dialTimeout = 10 * time.Second

// Backoff bounds how often a broker command is resent after a transient
// failure. The delay doubles per attempt and is capped at Max.
type Backoff struct {
	Retries int
	Base    time.Duration
	Max     time.Duration
}

var defaultBackoff = Backoff{Retries: 3, Base: time.Second, Max: 10 * time.Second}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Base << attempt
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// Client owns the gateway connection shared by the process starter and the
// review job workers.
type Client struct {
	zb             zbc.Client
	requestTimeout time.Duration
	backoff        Backoff
}

// NewClient dials a plaintext gateway and fails fast when the broker
// topology is unreachable.
func NewClient(address string, requestTimeout time.Duration) (*Client, error) {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	zb, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	c := &Client{zb: zb, requestTimeout: requestTimeout, backoff: defaultBackoff}
	if err := c.HealthCheck(context.Background()); err != nil {
		zb.Close()
		return nil, fmt.Errorf("connect to zeebe at %s: %w", address, err)
	}
	return c, nil
}

// GetClient exposes the gateway for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.zb
}

func (c *Client) Close() error {
	return c.zb.Close()
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if _, err := c.zb.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology: %w", err)
	}
	return nil
}

// Do sends a broker command, resending it while the failure is transient.
// Each send gets its own request deadline. The final failure is returned as
// a StandardError.
func (c *Client) Do(ctx context.Context, op string, send func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := c.sendOnce(ctx, send)
		if err == nil {
			return nil
		}
		if !transient(err) || attempt >= c.backoff.Retries {
			return classify(op, attempt+1, err)
		}

		select {
		case <-time.After(c.backoff.delay(attempt)):
		case <-ctx.Done():
			return errors.NewTimeoutError("zeebe", fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt+1, ctx.Err()))
		}
	}
}

func (c *Client) sendOnce(ctx context.Context, send func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return send(ctx)
}

// transient reports failures where resending the same command may succeed.
func transient(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"connection refused", "connection reset", "broken pipe", "unavailable", "unreachable", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func classify(op string, attempts int, err error) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempt(s): %w", op, attempts, err)
	code := codes.Unknown
	if s, ok := status.FromError(err); ok {
		code = s.Code()
	}
	msg := strings.ToLower(err.Error())

	switch {
	case code == codes.DeadlineExceeded || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case code == codes.NotFound || strings.Contains(msg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case code == codes.AlreadyExists || strings.Contains(msg, "already exists"):
		return errors.NewBusinessRuleError(wrapped.Error(), "Resource already exists")
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
