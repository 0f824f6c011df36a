package checker

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
)

// Callbacks receive batch progress. Any field may be nil. Progress is
// strictly monotonic and fires exactly once per visited account, frozen
// skips included.
type Callbacks struct {
	Progress func(done, total int)
	Status   func(text string)
	Result   func(accountID int64, res account.CheckResult)
	Finished func()
}

func (cb Callbacks) progress(done, total int) {
	if cb.Progress != nil {
		cb.Progress(done, total)
	}
}

func (cb Callbacks) status(text string) {
	if cb.Status != nil {
		cb.Status(text)
	}
}

func (cb Callbacks) result(id int64, res account.CheckResult) {
	if cb.Result != nil {
		cb.Result(id, res)
	}
}

// Runner drives the checker across a list of accounts: strictly sequential,
// paced between accounts, cancellable before each account starts.
type Runner struct {
	Checker   *Checker
	Delay     time.Duration // pause between accounts; 0 disables pacing
	Callbacks Callbacks
}

// Run checks each account in the caller-supplied order. Cancellation stops
// the batch before the next account; the in-flight account is not rolled
// back. Run always fires Finished.
func (r *Runner) Run(ctx context.Context, accounts []account.Account) {
	defer func() {
		if r.Callbacks.Finished != nil {
			r.Callbacks.Finished()
		}
	}()

	var limiter *rate.Limiter
	if r.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.Delay), 1)
	}

	total := len(accounts)
	done := 0
	r.Callbacks.progress(0, total)

	for _, acc := range accounts {
		if ctx.Err() != nil {
			r.Callbacks.status("Stopping...")
			break
		}

		if !acc.Backoff.Frozen(time.Now()) {
			r.Callbacks.status(fmt.Sprintf("Checking: %s...", acc.Name))
		}

		res := r.Checker.Check(ctx, acc)
		r.Callbacks.result(acc.ID, res)
		done++
		r.Callbacks.progress(done, total)

		// Frozen skips did no I/O, so they don't consume a pacing slot.
		if limiter != nil && res.Status != account.StatusFrozen {
			if err := limiter.Wait(ctx); err != nil {
				r.Callbacks.status("Stopping...")
				break
			}
		}
	}

	log.Printf("checker: batch done %d/%d", done, total)
	r.Callbacks.status(fmt.Sprintf("Finished checking %d/%d entries.", done, total))
}
