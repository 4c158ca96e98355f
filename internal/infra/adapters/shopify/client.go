// Package shopify implements the catalog ports against the Shopify Admin API.
package shopify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/coachpo/metasweep/errs"
)

const throttledCode = "THROTTLED"

// Client talks to one shop. It is safe for concurrent use; every request waits on a shared limiter.
type Client struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
	metrics *clientMetrics
}

// NewClient validates the configuration and constructs a client.
func NewClient(opts Options, logger *log.Logger) (*Client, error) {
	opts = withDefaults(opts)
	if opts.baseURL() == "" {
		return nil, errs.New(Platform, errs.CodeInvalid, errs.WithOp("new_client"), errs.WithMessage("store domain required"))
	}
	if opts.Config.AccessToken == "" {
		return nil, errs.New(Platform, errs.CodeInvalid, errs.WithOp("new_client"), errs.WithMessage("access token required"))
	}
	if logger == nil {
		logger = log.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Config.HTTPTimeout}
	}
	return &Client{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.Config.RequestsPerSecond), opts.Config.Burst),
		logger:  logger,
		metrics: newClientMetrics(),
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// graphql posts one operation and decodes its data into out.
func (c *Client) graphql(ctx context.Context, op, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return errs.New(Platform, errs.CodeInvalid, errs.WithOp(op), errs.WithCause(err))
	}
	data, err := c.retry(ctx, op, func() ([]byte, error) {
		return c.postGraphQL(ctx, op, body)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.New(Platform, errs.CodeProtocol, errs.WithOp(op), errs.WithMessage("decode data"), errs.WithCause(err))
	}
	return nil
}

// retry runs attempt until it succeeds, fails permanently or the throttle budget is spent. An
// exhausted budget surfaces as a transport error.
func (c *Client) retry(ctx context.Context, op string, attempt func() ([]byte, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.Config.RetryInitialInterval
	policy.MaxInterval = c.opts.Config.RetryMaxInterval

	started := time.Now()
	data, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.opts.Config.ThrottleMaxRetries+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.metrics.throttled(ctx, op)
			c.logger.Printf("shopify %s throttled, retrying in %s: %v", op, wait.Round(time.Millisecond), err)
		}),
	)
	err = finalizeError(op, err)
	c.metrics.request(ctx, op, time.Since(started), err)
	return data, err
}

// send performs one paced HTTP exchange and returns the body of a 200 response. Only throttling is
// returned as a retryable error.
func (c *Client) send(ctx context.Context, op, method, endpoint string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeTransport, errs.WithOp(op), errs.WithMessage("rate limiter"), errs.WithCause(err)))
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeInvalid, errs.WithOp(op), errs.WithCause(err)))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, c.opts.Config.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeTransport, errs.WithOp(op), errs.WithCause(err)))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		header := resp.Header.Get("Retry-After")
		opts := []errs.Option{errs.WithOp(op), errs.WithHTTP(resp.StatusCode), errs.WithField("retry_after", header)}
		if wait, ok := retryAfter(header, time.Now(), c.opts.Config.RetryAfterMax); ok {
			opts = append(opts, errs.WithCause(&backoff.RetryAfterError{Duration: wait}))
		}
		return nil, errs.New(Platform, errs.CodeThrottled, opts...)
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeNotFound, errs.WithOp(op), errs.WithHTTP(resp.StatusCode)))
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(statusError(op, resp))
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeTransport, errs.WithOp(op), errs.WithMessage("read body"), errs.WithCause(err)))
	}
	return payload, nil
}

func (c *Client) postGraphQL(ctx context.Context, op string, body []byte) ([]byte, error) {
	raw, err := c.send(ctx, op, http.MethodPost, c.opts.graphqlEndpoint(), body)
	if err != nil {
		if errs.IsCode(err, errs.CodeNotFound) {
			// the graphql endpoint itself is missing: wrong shop or API version
			return nil, backoff.Permanent(errs.New(Platform, errs.CodeTransport, errs.WithOp(op), errs.WithHTTP(http.StatusNotFound),
				errs.WithMessage("graphql endpoint not found")))
		}
		return nil, err
	}
	var payload graphqlResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeProtocol, errs.WithOp(op), errs.WithMessage("decode response"), errs.WithCause(err)))
	}
	if len(payload.Errors) > 0 {
		for _, e := range payload.Errors {
			if strings.EqualFold(e.Extensions.Code, throttledCode) {
				return nil, errs.New(Platform, errs.CodeThrottled, errs.WithOp(op), errs.WithRawCode(throttledCode), errs.WithMessage(e.Message))
			}
		}
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeProtocol,
			errs.WithOp(op),
			errs.WithRawCode(payload.Errors[0].Extensions.Code),
			errs.WithMessage(joinMessages(payload.Errors))))
	}
	if len(payload.Data) == 0 || string(payload.Data) == "null" {
		return nil, backoff.Permanent(errs.New(Platform, errs.CodeProtocol, errs.WithOp(op), errs.WithMessage("response carries no data")))
	}
	return payload.Data, nil
}

// retryAfter reads a Retry-After header given as (possibly fractional) seconds or an HTTP date.
func retryAfter(header string, now time.Time, limit time.Duration) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	var wait time.Duration
	if secs, err := strconv.ParseFloat(header, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		wait = time.Duration(secs * float64(time.Second))
	} else if at, err := http.ParseTime(header); err == nil {
		wait = max(at.Sub(now), 0)
	} else {
		return 0, false
	}
	return min(wait, limit), true
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return errs.New(Platform, errs.CodeTransport,
		errs.WithOp(op),
		errs.WithHTTP(resp.StatusCode),
		errs.WithMessage(fmt.Sprintf("unexpected status: %s", strings.TrimSpace(string(body)))))
}

// finalizeError turns an exhausted throttle budget or an aborted wait into a fatal transport error.
func finalizeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errs.IsCode(err, errs.CodeThrottled) {
		return errs.New(Platform, errs.CodeTransport, errs.WithOp(op), errs.WithMessage("throttle retry budget exhausted"), errs.WithCause(err))
	}
	if errs.CodeOf(err) == "" {
		return errs.New(Platform, errs.CodeTransport, errs.WithOp(op), errs.WithCause(err))
	}
	return err
}

func joinMessages(list []graphqlError) string {
	msgs := make([]string, 0, len(list))
	for _, e := range list {
		if m := strings.TrimSpace(e.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	return strings.Join(msgs, "; ")
}

// userError is the mutation-level error shape shared by metafield mutations.
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// userErrorsToErr classifies userErrors. Messages that report a missing resource map to not found;
// everything else is a record-level validation failure.
func userErrorsToErr(op string, list []userError) error {
	if len(list) == 0 {
		return nil
	}
	fields := make([]errs.FieldError, 0, len(list))
	notFound := true
	for _, ue := range list {
		fields = append(fields, errs.FieldError{Field: ue.Field, Message: ue.Message})
		if !missingResource(ue) {
			notFound = false
		}
	}
	code := errs.CodeValidation
	if notFound {
		code = errs.CodeNotFound
	}
	return errs.New(Platform, code, errs.WithOp(op), errs.WithRawCode(list[0].Code), errs.WithFields(fields...))
}

func missingResource(ue userError) bool {
	if strings.EqualFold(ue.Code, "NOT_FOUND") {
		return true
	}
	msg := strings.ToLower(ue.Message)
	return strings.Contains(msg, "not exist") || strings.Contains(msg, "not found")
}
