// internal/match/ratelimit.go
package match

import "time"

// Submission flood limits, per participant per match: a rolling 10-second
// lookback capped at 10 submissions, plus a hard cap on claims that actually
// land on the board. acceptedCap is a floor: a match whose engine needs more
// accepted claims per seat to finish raises its limit to that count.
const (
	rateLookback = 10 * time.Second
	rateBurstCap = 10
	acceptedCap  = 8
)

// rateLimit tracks one participant's submission bookkeeping for one match.
// Guarded by the owning match's mutex.
type rateLimit struct {
	times    []time.Time
	accepted int
}

// allow records a submission attempt at the given time and reports whether it
// is within both caps. acceptedLimit is the owning match's cap on claims that
// land on the board. A disallowed attempt is not recorded.
func (rl *rateLimit) allow(now time.Time, acceptedLimit int) bool {
	if rl.accepted >= acceptedLimit {
		return false
	}
	cutoff := now.Add(-rateLookback)
	kept := rl.times[:0]
	for _, t := range rl.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.times = kept
	if len(rl.times) >= rateBurstCap {
		return false
	}
	rl.times = append(rl.times, now)
	return true
}
