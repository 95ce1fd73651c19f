package painter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"go.viam.com/painter/logging"
)

var (
	// ErrTransportUnavailable is returned when the painter service cannot be reached.
	ErrTransportUnavailable = errors.New("painter service unavailable")
	// ErrMessageTooLarge is returned when a message exceeds the size limit of either side.
	ErrMessageTooLarge = errors.New("painter message too large")
)

// RetryPolicy controls how a client calls the service: it waits InitialDelay before the first
// call and Interval between calls. Calls that fail because the service or a transform is not
// available yet are retried, up to MaxAttempts calls when it is positive. With Loop set,
// PaintLoop keeps repainting after each success.
type RetryPolicy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Loop         bool
	MaxAttempts  int
}

// DefaultRetryPolicy waits 2s before the first call and 0.5s between calls, without looping.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{InitialDelay: 2 * time.Second, Interval: 500 * time.Millisecond}
}

// Client calls a remote painter service.
type Client struct {
	conn   grpc.ClientConnInterface
	closer func() error
	clock  clock.Clock
	logger logging.Logger
}

// DefaultClientDialOptions returns plaintext dial options that trace every call and allow
// messages up to DefaultMaxMessageBytes.
func DefaultClientDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		MessageSizeDialOption(DefaultMaxMessageBytes),
	}
}

// MessageSizeDialOption lets calls send and receive messages up to n bytes.
func MessageSizeDialOption(n int) grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(n), grpc.MaxCallSendMsgSize(n))
}

// NewClient returns a client for the service at address. No connection is made until the
// first call.
func NewClient(address string, logger logging.Logger, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(address, append(DefaultClientDialOptions(), opts...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "creating client for %s", address)
	}
	c := NewClientFromConn(conn, logger)
	c.closer = conn.Close
	return c, nil
}

// NewClientFromConn returns a client over an existing connection, which the caller closes.
func NewClientFromConn(conn grpc.ClientConnInterface, logger logging.Logger) *Client {
	return &Client{conn: conn, clock: clock.New(), logger: logger}
}

// SetClock replaces the clock used to wait between calls.
func (c *Client) SetClock(clk clock.Clock) {
	c.clock = clk
}

// Close closes the connection if the client opened it.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// WaitForHealth blocks until the service reports SERVING or ctx is done.
func (c *Client) WaitForHealth(ctx context.Context) error {
	healthClient := healthpb.NewHealthClient(c.conn)
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := healthClient.Check(callCtx, &healthpb.HealthCheckRequest{Service: ServiceName})
		cancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		if err != nil {
			c.logger.Debugw("waiting for painter health", "error", err)
		} else {
			c.logger.Debugw("waiting for painter health", "status", resp.GetStatus().String())
		}
		if !c.sleep(ctx, backoff) {
			return errors.Wrap(ctx.Err(), "waiting for painter health")
		}
		if backoff < time.Second {
			backoff = min(2*backoff, time.Second)
		}
	}
}

// Paint makes a single call.
func (c *Client) Paint(ctx context.Context, req Request) (*Response, error) {
	in, err := RequestToWire(req)
	if err != nil {
		return nil, err
	}
	out := new(WireResponse)
	if err := c.conn.Invoke(ctx, paintMethod, in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, errorFromStatus(err)
	}
	cloud, err := CloudFromWire(out.Cloud)
	if err != nil {
		return nil, errors.Wrap(err, "decoding painted cloud")
	}
	return &Response{RequestID: out.RequestID, State: StateDone, Cloud: cloud, Stats: out.Stats}, nil
}

// PaintWithRetry waits the initial delay and calls the service until one call succeeds, a call
// fails for a reason retrying cannot fix, the attempts run out or ctx is done.
func (c *Client) PaintWithRetry(ctx context.Context, req Request, policy RetryPolicy) (*Response, error) {
	if !c.sleep(ctx, policy.InitialDelay) {
		return nil, ctx.Err()
	}
	return c.paintUntilSuccess(ctx, req, policy)
}

// PaintLoop is PaintWithRetry that, when policy.Loop is set, keeps repainting every interval and
// hands each response to onResponse. It returns nil once ctx is done after a success.
func (c *Client) PaintLoop(ctx context.Context, req Request, policy RetryPolicy, onResponse func(*Response)) error {
	resp, err := c.PaintWithRetry(ctx, req, policy)
	for {
		if err != nil {
			return err
		}
		onResponse(resp)
		if !policy.Loop || !c.sleep(ctx, policy.Interval) {
			return nil
		}
		resp, err = c.paintUntilSuccess(ctx, req, policy)
		if err != nil && ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Client) paintUntilSuccess(ctx context.Context, req Request, policy RetryPolicy) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.Paint(ctx, req)
		if err == nil {
			c.logger.Infow("painted cloud", "request_id", resp.RequestID, "points", resp.Cloud.Size())
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, errors.Wrapf(err, "giving up after %d attempts", attempt)
		}
		c.logger.Warnw("paint call failed, retrying", "attempt", attempt, "error", err)
		if !c.sleep(ctx, policy.Interval) {
			return nil, fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrTransportUnavailable) || errors.Is(err, ErrTransformTimeout)
}

// sleep waits d on the client clock and reports whether ctx is still alive.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := c.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func errorFromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrTransportUnavailable, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrTransformTimeout, st.Message())
	case codes.InvalidArgument:
		if strings.Contains(st.Message(), ErrImageDecode.Error()) {
			return fmt.Errorf("%w: %s", ErrImageDecode, st.Message())
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrMessageTooLarge, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	default:
		return err
	}
}
