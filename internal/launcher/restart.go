package launcher

import (
	"time"

	"golang.org/x/time/rate"
)

type restartLimiter interface {
	Allow() bool
}

type limiterAdapter struct {
	limiter *rate.Limiter
}

// newRestartLimiter allows up to perMinute relaunches in any one-minute
// window. A non-positive budget disables restarts.
func newRestartLimiter(perMinute int) restartLimiter {
	if perMinute <= 0 {
		return nil
	}

	return &limiterAdapter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (l *limiterAdapter) Allow() bool {
	if l == nil || l.limiter == nil {
		return false
	}
	return l.limiter.Allow()
}
