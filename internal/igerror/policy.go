package igerror

import "time"

// Policy holds the backoff constants. Base delays are in seconds; codes
// missing from BaseDelays have no delay.
type Policy struct {
	BaseDelays map[Code]int
	MaxDelay   int
}

var DefaultPolicy = Policy{
	BaseDelays: map[Code]int{
		CodeRateLimit:         300,
		CodeTemporaryError:    60,
		CodeNetworkError:      10,
		CodeProcessingTimeout: 120,
	},
	MaxDelay: 1800,
}

// NewPolicy overlays the given base delays (keyed by code string) and cap on
// DefaultPolicy. Unknown code names are ignored.
func NewPolicy(baseDelays map[string]int, maxDelay time.Duration) Policy {
	p := Policy{BaseDelays: make(map[Code]int, len(DefaultPolicy.BaseDelays)), MaxDelay: DefaultPolicy.MaxDelay}
	for code, seconds := range DefaultPolicy.BaseDelays {
		p.BaseDelays[code] = seconds
	}
	for name, seconds := range baseDelays {
		if code, ok := ParseCode(name); ok && IsRetryable(code) {
			p.BaseDelays[code] = seconds
		}
	}
	if maxDelay > 0 {
		p.MaxDelay = int(maxDelay / time.Second)
	}
	return p
}

// RetryDelay returns baseDelay(code) * 2^retryCount seconds, capped at MaxDelay.
func RetryDelay(code Code, retryCount int) int {
	return DefaultPolicy.RetryDelay(code, retryCount)
}

func (p Policy) RetryDelay(code Code, retryCount int) int {
	base := p.BaseDelays[code]
	if base <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// NextAttempt is the earliest time a post last touched at updatedAt may be
// retried.
func (p Policy) NextAttempt(code Code, retryCount int, updatedAt time.Time) time.Time {
	return updatedAt.Add(time.Duration(p.RetryDelay(code, retryCount)) * time.Second)
}
