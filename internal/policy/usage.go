// Package policy holds the pure rules of the usage engine: warn and lock
// thresholds, contact-only classification, subscription plans and date
// availability. Nothing here touches storage or the clock.
package policy

const (
	// FreeContactLimit applies when a supplier has no active plan.
	FreeContactLimit = 50
	// BookingLimit caps bookings received by limit-enforced categories.
	BookingLimit = 50
)

// WarnThreshold returns floor(limit * 0.8).
func WarnThreshold(limit int) int {
	if limit <= 0 {
		return 0
	}
	return limit * 8 / 10
}

// ShouldWarn is true while count sits in [floor(0.8*limit), limit).
// Negative counts and non-positive limits never warn.
func ShouldWarn(count, limit int) bool {
	if count < 0 || limit <= 0 {
		return false
	}
	return count >= WarnThreshold(limit) && count < limit
}

// ShouldLock is true once count reaches limit. Negative counts and
// non-positive limits never lock.
func ShouldLock(count, limit int) bool {
	if count < 0 || limit <= 0 {
		return false
	}
	return count >= limit
}

// Remaining returns how many interactions are left before the limit.
func Remaining(count, limit int) int {
	if count >= limit {
		return 0
	}
	if count < 0 {
		return limit
	}
	return limit - count
}

// UsagePercent returns count/limit as a percentage capped at 100.
func UsagePercent(count, limit int) float64 {
	if limit <= 0 || count <= 0 {
		return 0
	}
	p := float64(count) / float64(limit) * 100
	if p > 100 {
		return 100
	}
	return p
}
