// Package rpc is the outbound call channel between companions: a JSON-RPC
// 2.0 client with a fixed retry policy. The dispatcher moves envelopes and
// maps failures; it never audits its own calls, that stays with callers so
// retry policy and audit policy cannot entangle.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/justQrius/companion-network-sub000/internal/platform/metrics"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = 500 * time.Millisecond
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  params `json:"params"`
}

type params struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *remoteError    `json:"error,omitempty"`
}

type remoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RemoteError is an application-level error the peer reported inside a
// well-formed response. It is surfaced verbatim and never retried.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Dispatcher sends operation calls to a peer companion endpoint.
type Dispatcher struct {
	client  *http.Client
	backoff time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for attempt and outcome lines.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTimeout bounds one Call end to end, retry included.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithBackoff sets the pause before the single retry.
func WithBackoff(backoff time.Duration) Option {
	return func(d *Dispatcher) { d.backoff = backoff }
}

// WithHTTPClient swaps the underlying HTTP client, for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

// New constructs a dispatcher.
func New(m *metrics.Metrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:  &http.Client{},
		backoff: defaultBackoff,
		timeout: defaultTimeout,
		metrics: m,
		tracer:  otel.Tracer("companion/rpc"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call sends {operation, args} to the endpoint and returns the raw result.
//
// Retry policy: a transport-level failure (dial error, timeout, HTTP 5xx)
// is retried exactly once after a fixed backoff; a second failure surfaces
// Unavailable naming the endpoint only. An error object in the JSON-RPC
// response is an application-level failure: surfaced verbatim, never
// retried. A response with neither result nor error is a protocol error.
func (d *Dispatcher) Call(ctx context.Context, endpoint, operation string, args map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "rpc.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.operation", operation),
			attribute.String("rpc.endpoint", endpoint),
		),
	)
	defer span.End()

	started := time.Now()
	result, err := d.call(ctx, endpoint, operation, args)
	if d.metrics != nil {
		d.metrics.DispatchDurations.Observe(time.Since(started).Seconds())
		d.metrics.DispatchOutcomes.WithLabelValues(operation, outcomeLabel(err)).Inc()
	}
	if err != nil {
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (d *Dispatcher) call(ctx context.Context, endpoint, operation string, args map[string]any) (map[string]any, error) {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params:  params{Name: operation, Arguments: args},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode rpc request")
	}

	const attempts = 2
	var lastTransportErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if d.metrics != nil {
			d.metrics.DispatchAttempts.WithLabelValues(operation).Inc()
		}

		resp, transportErr := d.post(ctx, endpoint, body)
		if transportErr == nil {
			return d.decode(resp)
		}
		lastTransportErr = transportErr

		if d.logger != nil {
			d.logger.Warn("dispatch transport failure",
				"endpoint", endpoint,
				"operation", operation,
				"attempt", attempt,
				"error", transportErr,
			)
		}
		if attempt == attempts {
			break
		}
		if d.metrics != nil {
			d.metrics.DispatchRetries.Inc()
		}
		select {
		case <-time.After(d.backoff):
		case <-ctx.Done():
			return nil, dErrors.Newf(dErrors.CodeTimeout, "call to %s timed out", endpoint)
		}
	}

	if ctx.Err() != nil {
		return nil, dErrors.Newf(dErrors.CodeTimeout, "call to %s timed out", endpoint)
	}
	// The transport error stays in the log; the surfaced error names the
	// endpoint only.
	_ = lastTransportErr
	return nil, dErrors.Newf(dErrors.CodeUnavailable,
		"peer at %s is unavailable. Please ensure the remote companion is running", endpoint)
}

// post performs one HTTP exchange. An HTTP 5xx counts as a transport
// failure; any other status is handed to decode.
func (d *Dispatcher) post(ctx context.Context, endpoint string, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, httpResp.Body)
		return nil, fmt.Errorf("server error: %s", httpResp.Status)
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		// A body that is not JSON-RPC at all is a broken peer, not a
		// transport blip; no retry.
		return &response{}, nil
	}
	return &resp, nil
}

func (d *Dispatcher) decode(resp *response) (map[string]any, error) {
	if resp.Error != nil {
		return nil, &RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Result) == 0 {
		return nil, dErrors.New(dErrors.CodeProtocol, "invalid response: missing 'result' field")
	}
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProtocol, "invalid response: malformed 'result' field")
	}
	return result, nil
}

func outcomeLabel(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &remote):
		return "remote_error"
	case dErrors.HasCode(err, dErrors.CodeUnavailable):
		return "unavailable"
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return "timeout"
	case dErrors.HasCode(err, dErrors.CodeProtocol):
		return "protocol_error"
	default:
		return "error"
	}
}
