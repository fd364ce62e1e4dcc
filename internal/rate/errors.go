package rate

import "errors"

var (
	// ErrRateLimited is returned once a window's budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures inside the package. Callers
	// never see it because the limiter fails open.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
