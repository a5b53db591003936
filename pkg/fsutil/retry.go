package fsutil

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// RetryPolicy bounds the retry loop around transient write failures.
type RetryPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRetryPolicy retries three times total with a short pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, RetryDelay: 100 * time.Millisecond}
}

// IsTransient reports whether err is a temporary filesystem condition
// worth retrying. Permission, space, and path errors are permanent and
// must propagate on the first attempt.
func IsTransient(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR, syscall.EBUSY:
			return true
		}
		// EWOULDBLOCK aliases EAGAIN on Linux but not everywhere.
		return errno.Temporary()
	}
	return false
}

// RetryTransient runs op up to policy.MaxRetries times, sleeping
// policy.RetryDelay between attempts. Only transient errors are
// retried; anything else returns immediately. After the final attempt
// the last error is returned as-is.
func RetryTransient(policy RetryPolicy, op func() error) error {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt < policy.MaxRetries {
			time.Sleep(policy.RetryDelay)
		}
	}
	return lastErr
}

// WriteWithRetry is AtomicWrite wrapped in RetryTransient.
func WriteWithRetry(path string, data []byte, perm os.FileMode, policy RetryPolicy) error {
	return RetryTransient(policy, func() error {
		return AtomicWrite(path, data, perm)
	})
}

// WriteJSONWithRetry is AtomicWriteJSON wrapped in RetryTransient.
func WriteJSONWithRetry(path string, value any, perm os.FileMode, policy RetryPolicy) error {
	return RetryTransient(policy, func() error {
		return AtomicWriteJSON(path, value, perm)
	})
}
