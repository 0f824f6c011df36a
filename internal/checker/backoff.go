package checker

import (
	"fmt"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
)

// Backoff ("freezing") throttles accounts whose servers keep failing so the
// batch doesn't hammer dead panels, while letting them recover: one success
// clears the state entirely.

const (
	backoffBase = time.Minute
	backoffMax  = 24 * time.Hour
)

// Decision is the outcome of the pre-check backoff gate.
type Decision struct {
	// Skip means the account is still frozen; Result is the synthesized
	// CheckResult to report and no network I/O may happen.
	Skip   bool
	Result account.CheckResult
}

// Decide applies the freeze gate. A frozen account yields a Frozen result
// carrying the unchanged prior backoff state.
func Decide(prior account.BackoffState, now time.Time) Decision {
	if !prior.Frozen(now) {
		return Decision{}
	}
	return Decision{
		Skip: true,
		Result: account.CheckResult{
			Status:     account.StatusFrozen,
			Message:    fmt.Sprintf("Skipped (Frozen until %s)", prior.FrozenUntil.Format("15:04:05")),
			NewBackoff: prior,
		},
	}
}

// Update computes the next backoff state after a check. Success resets
// everything; failure doubles the freeze window: 2m, 4m, 8m, ... capped at
// 24h. (The first failure freezes for 2m because BadCount increments before
// the shift.)
func Update(prior account.BackoffState, succeeded bool, now time.Time) account.BackoffState {
	if succeeded {
		return account.BackoffState{}
	}
	bad := prior.BadCount + 1
	return account.BackoffState{
		BadCount:    bad,
		FrozenUntil: now.Add(backoffDuration(bad)),
	}
}

func backoffDuration(badCount int) time.Duration {
	if badCount < 1 {
		badCount = 1
	}
	// 60 * 2^badCount seconds; the shift saturates well past the cap.
	if badCount > 20 {
		return backoffMax
	}
	d := backoffBase * time.Duration(1<<uint(badCount))
	if d > backoffMax {
		return backoffMax
	}
	return d
}
