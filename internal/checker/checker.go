// Package checker is the account verification engine: protocol clients for
// Xtream and Stalker backends, the failure-backoff policy, and the batch
// runner that drives them.
package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/config"
)

// Checker dispatches a single account to the right protocol client and
// applies the backoff policy around the result. It holds no per-account
// state; the same Checker serves a whole batch.
type Checker struct {
	xtream    *Xtream
	verifier  *StreamVerifier
	timeout   time.Duration
	stalkerTZ string
	now       func() time.Time
}

// New builds a Checker from config. The tier-2 stream verifier is only
// attached when cfg.StreamCheck is set.
func New(cfg *config.Config) *Checker {
	c := &Checker{
		xtream:    NewXtream(cfg.APITimeout, cfg.UserAgent),
		timeout:   cfg.APITimeout,
		stalkerTZ: cfg.StalkerTimezone,
		now:       time.Now,
	}
	if cfg.StreamCheck {
		c.verifier = NewStreamVerifier(cfg.UserAgent, cfg.StreamSpeedFloor)
	}
	return c
}

// Check verifies one account. It never returns an error: every failure mode
// is folded into the CheckResult, and NewBackoff always carries the state the
// caller must persist. A frozen account is skipped without any network I/O.
func (c *Checker) Check(ctx context.Context, acc account.Account) account.CheckResult {
	now := c.now()
	if d := Decide(acc.Backoff, now); d.Skip {
		return d.Result
	}

	var res account.CheckResult
	switch acc.Type {
	case account.TypeStalker:
		res = c.checkStalker(ctx, acc.Stalker)
	default:
		res = c.xtream.Check(ctx, acc.Xtream.ServerBaseURL, acc.Xtream.Username, acc.Xtream.Password)
	}

	// Tier 2: only for Xtream accounts that passed the credential check, and
	// only when enabled. A dead stream demotes the message, not the success.
	if c.verifier != nil && res.Success && res.Status == account.StatusActive && acc.Type == account.TypeXtream {
		if ok, msg := c.verifier.VerifyAccountStreams(ctx, acc.Xtream.ServerBaseURL, acc.Xtream.Username, acc.Xtream.Password); !ok {
			res.Status = account.Status("Active (Stream Error)")
			res.Message = "API OK, but stream check failed: " + msg
		} else {
			res.Message = "Active & Verified"
		}
	}

	res.NewBackoff = Update(acc.Backoff, res.Success, now)
	if !res.Success {
		if res.Message == "" {
			res.Message = "Check Failed"
		}
		freeze := int(res.NewBackoff.FrozenUntil.Sub(now).Seconds())
		res.Message += fmt.Sprintf(" (Frozen %ds)", freeze)
	}
	return res
}
