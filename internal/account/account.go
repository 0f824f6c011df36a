// Package account holds the shared data model for IPTV subscription
// credentials and check outcomes. The checker engine reads Accounts and
// produces CheckResults; the store persists both.
package account

import (
	"regexp"
	"strings"
	"time"
)

// Type selects which backend protocol an account speaks.
type Type string

const (
	// TypeXtream is the query-parameter player_api.php panel API.
	TypeXtream Type = "xc"
	// TypeStalker is the reverse-engineered MAG set-top-box portal protocol.
	TypeStalker Type = "stalker"
)

// XtreamCreds are the credentials for an Xtream Codes panel.
type XtreamCreds struct {
	ServerBaseURL string
	Username      string
	Password      string
}

// StalkerCreds identify a MAG device against a Stalker portal.
type StalkerCreds struct {
	PortalURL  string
	MACAddress string
}

// BackoffState is the persisted failure-throttle state for one account.
// BadCount is the number of consecutive failed checks; FrozenUntil is the
// time before which the account is skipped. The zero value means "never
// failed, always eligible".
type BackoffState struct {
	BadCount    int
	FrozenUntil time.Time
}

// Frozen reports whether the account should be skipped at the given time.
func (b BackoffState) Frozen(now time.Time) bool {
	return !b.FrozenUntil.IsZero() && now.Before(b.FrozenUntil)
}

// Account is one stored subscription entry. The engine treats it as
// read-only during a check; the updated BackoffState comes back inside the
// CheckResult for the caller to persist.
type Account struct {
	ID       int64
	Name     string
	Category string
	Type     Type
	Xtream   XtreamCreds
	Stalker  StalkerCreds
	Backoff  BackoffState
}

// Status is the normalized outcome class of a check. It is an open string:
// Xtream panels report their own status words (e.g. "Banned", "Disabled")
// which are passed through verbatim when authentication succeeded.
type Status string

const (
	StatusActive     Status = "Active"
	StatusAuthFailed Status = "Auth Failed"
	StatusExpired    Status = "Expired"
	StatusInactive   Status = "Inactive"
	StatusFrozen     Status = "Frozen"
	StatusError      Status = "Error"
	StatusUnknown    Status = "Unknown"
)

// CheckResult is the immutable outcome of checking one account once.
// Optional fields are pointers; nil means the backend did not report them.
type CheckResult struct {
	Success bool
	Status  Status
	Message string

	Expiry  time.Time // zero when the backend reported no parseable expiry
	IsTrial *bool

	// Xtream only.
	ActiveConns *int
	MaxConns    *int
	LiveCount   *int
	VodCount    *int
	SeriesCount *int

	// Raw backend payloads, kept verbatim for audit/debugging. Never parsed
	// again downstream.
	RawUserInfo   string
	RawServerInfo string

	// NewBackoff is the state the caller must persist for this account.
	NewBackoff BackoffState
}

var macSep = regexp.MustCompile(`[^0-9A-Fa-f]`)

// NormalizeMAC uppercases a MAC address and rewrites it as colon-separated
// hex pairs. Inputs with dashes, dots or no separators are accepted; anything
// that does not contain 12 hex digits is returned uppercased as-is.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	hex := macSep.ReplaceAllString(mac, "")
	if len(hex) != 12 {
		return strings.ToUpper(mac)
	}
	hex = strings.ToUpper(hex)
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, hex[i:i+2])
	}
	return strings.Join(parts, ":")
}
