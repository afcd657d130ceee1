package infra

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// Retry defaults: 3 retries (4 calls in total), starting at one second.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// permanentError marks an error that another attempt cannot fix.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Retry returns it at once without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn once, then up to retries more times with exponential
// backoff starting at delay. It returns nil on the first successful call,
// or the last error if every attempt fails. The function respects context
// cancellation between attempts. An error wrapped by Permanent stops the
// loop and is returned unwrapped.
func Retry(ctx context.Context, retries int, delay time.Duration, fn func() error) error {
	if retries < 0 {
		retries = 0
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		// Don't sleep after the last failed attempt.
		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return err
}

// RetryHTTP sends the request built by newReq with Retry semantics.
// Transport errors and non-2xx statuses count as failures; the latter are
// reported as *ErrHTTP. The caller owns the returned body.
func RetryHTTP(ctx context.Context, client *http.Client, retries int, delay time.Duration,
	newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {

	if client == nil {
		client = http.DefaultClient
	}
	var resp *http.Response
	err := Retry(ctx, retries, delay, func() error {
		req, err := newReq(ctx)
		if err != nil {
			return err
		}
		r, err := client.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			defer r.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
			return &ErrHTTP{StatusCode: r.StatusCode, Status: r.Status, Body: string(body)}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
