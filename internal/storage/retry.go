package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/document-locker/locker/internal/logging"
)

// errorClass decides whether a failed cloud call is worth repeating.
type errorClass int

const (
	classSuccess errorClass = iota
	classRetryable
	classFatal
)

func (c errorClass) String() string {
	switch c {
	case classSuccess:
		return "success"
	case classRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// retryPolicy bounds withRetry. Attempts counts the first try.
type retryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var defaultRetryPolicy = retryPolicy{
	Attempts:     4,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// classify sorts an error from S3 or Azure. Typed errors are checked
// first; the message is a fallback for transport failures the SDKs wrap.
func classify(err error) errorClass {
	if err == nil {
		return classSuccess
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classFatal
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return classifyStatus(respErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset", "connection refused", "broken pipe", "i/o timeout",
		"tls handshake timeout", "unexpected eof",
		"requesttimeout", "internalerror", "serviceunavailable", "slowdown",
		"throttl", "serverbusy", "server busy", "operationtimeout",
		"statuscode: 500", "statuscode: 502", "statuscode: 503", "statuscode: 504",
	} {
		if strings.Contains(msg, s) {
			return classRetryable
		}
	}
	return classFatal
}

func classifyStatus(code int) errorClass {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return classRetryable
	default:
		return classFatal
	}
}

// backoff is full-jitter exponential: random(0, min(max, initial*2^attempt)).
func backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := initial << uint(attempt)
	if d <= 0 || d > max {
		d = max
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// withRetry runs fn until it succeeds, fails fatally, or the policy runs
// out. Waits between attempts end early when ctx is cancelled.
func withRetry(ctx context.Context, p retryPolicy, logger *logging.Logger, op string, fn func() error) error {
	var last error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn()
		class := classify(last)
		if class != classRetryable {
			return last
		}
		if attempt == p.Attempts-1 {
			break
		}

		wait := backoff(attempt+1, p.InitialDelay, p.MaxDelay)
		logger.Debug().Err(last).Str("op", op).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying storage call")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, p.Attempts, last)
}

// rewindable returns a func that seeks r back to the start before each
// attempt, or nil when r cannot be rewound and must only be sent once.
func rewindable(r io.Reader) func() error {
	s, ok := r.(io.Seeker)
	if !ok {
		return nil
	}
	return func() error {
		_, err := s.Seek(0, io.SeekStart)
		return err
	}
}
