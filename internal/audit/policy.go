package audit

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// Policy configures the uniform per-step execution behavior: timeout
// racing, retry with exponential backoff and jitter, and fallback.
type Policy struct {
	// MaxRetries is the number of reattempts after the first failure.
	MaxRetries int

	// BaseDelay seeds the exponential backoff: delay = base * 2^attempt
	// plus up to half of base in random jitter.
	BaseDelay time.Duration

	// MaxDelay caps any single backoff delay.
	MaxDelay time.Duration

	// StepTimeout bounds every individual attempt. Zero applies no
	// per-attempt deadline beyond the caller's context.
	StepTimeout time.Duration
}

// backoffDelay computes the delay before reattempting after the given
// zero-based attempt, with jitter so concurrent retries spread out.
func (p Policy) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(p.BaseDelay)/2 + 1))
	return delay + jitter
}

// stepOutcome reports how a policy execution concluded.
type stepOutcome struct {
	attempts     int
	fallbackUsed bool
	err          error
}

// executeWithPolicy runs fn under the step policy: each attempt races a
// per-attempt deadline, retryable failures back off and reattempt up to
// MaxRetries, non-retryable failures short-circuit, and when all attempts
// are exhausted the fallback (if any) gets one try. It is the single
// retry implementation shared by every pipeline step.
func executeWithPolicy[T any](
	ctx context.Context,
	policy Policy,
	fn func(ctx context.Context) (T, error),
	fallback func(ctx context.Context) (T, error),
) (T, stepOutcome) {
	var zero T
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		attempts++

		result, err := runAttempt(ctx, policy.StepTimeout, fn)
		if err == nil {
			return result, stepOutcome{attempts: attempts}
		}
		lastErr = err

		// The whole workflow budget is gone: stop immediately
		if ctx.Err() != nil {
			lastErr = types.WrapRetryableError(types.TIMEOUT_ERROR, "workflow deadline exceeded", ctx.Err())
			break
		}

		// Validation and auth class failures never improve on retry
		if !types.IsRetryable(err) {
			break
		}

		if attempt == policy.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			lastErr = types.WrapRetryableError(types.TIMEOUT_ERROR, "workflow deadline exceeded during backoff", ctx.Err())
		case <-time.After(policy.backoffDelay(attempt)):
			continue
		}
		break
	}

	// The fallback only runs while the workflow deadline still stands;
	// against a dead context it could not succeed anyway.
	if fallback != nil && ctx.Err() == nil {
		result, err := runAttempt(ctx, policy.StepTimeout, fallback)
		if err == nil {
			return result, stepOutcome{attempts: attempts, fallbackUsed: true}
		}
		// The primary's error stays authoritative when the fallback also fails
	}

	return zero, stepOutcome{attempts: attempts, err: lastErr}
}

// runAttempt executes one attempt under its per-attempt deadline,
// converting deadline expiry into a retryable timeout error.
func runAttempt[T any](
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := fn(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return result, types.WrapRetryableError(types.TIMEOUT_ERROR, "step deadline exceeded", err)
	}
	return result, err
}
