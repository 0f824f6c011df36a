package checker

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/httpclient"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/stalker"
)

// checkStalker runs the handshake → profile → classify sequence against a
// MAG portal. A fresh cookie-jar session is built per call so nothing leaks
// between accounts.
func (c *Checker) checkStalker(ctx context.Context, creds account.StalkerCreds) account.CheckResult {
	res := account.CheckResult{Status: account.StatusError}
	if creds.PortalURL == "" || creds.MACAddress == "" {
		res.Message = "Missing Portal URL or MAC"
		return res
	}

	client, err := httpclient.NewSession(c.timeout)
	if err != nil {
		res.Message = "Session Error: " + err.Error()
		return res
	}
	portal, err := stalker.New(creds.PortalURL, account.NormalizeMAC(creds.MACAddress), c.stalkerTZ, client)
	if err != nil {
		res.Message = "Portal Error: " + err.Error()
		return res
	}

	session, err := portal.Handshake(ctx)
	if err != nil {
		res.Message = "Handshake Failed (Invalid MAC or URL)"
		return res
	}

	profile, _, err := portal.Profile(ctx, session)
	if err != nil {
		res.Message = "Profile fetch failed (Auth Invalid)"
		return res
	}

	res.Success = true
	res.Status = account.StatusActive
	if raw, err := json.Marshal(profile); err == nil {
		res.RawUserInfo = string(raw)
	}

	// Some portals carry an explicit account status flag.
	switch stalkerFieldStr(profile["status"]) {
	case "0", "2":
		res.Status = account.StatusInactive
	}

	res.Expiry = findExpiry(profile)
	if !res.Expiry.IsZero() && res.Expiry.Before(c.now()) {
		// Expiry is a status refinement: the credentials still authenticate.
		res.Status = account.StatusExpired
	}
	return res
}

// expiryFields is the priority order for expiry-like profile fields. "phone"
// last: some portals stuff the expiry date into it.
var expiryFields = []string{"expire_date", "expiration_date", "expire_billing_date", "phone"}

func findExpiry(profile map[string]any) time.Time {
	for _, field := range expiryFields {
		v := stalkerFieldStr(profile[field])
		if v == "" || v == "0" {
			continue
		}
		if t := parseStalkerDate(v); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// stalkerDateLayouts are the formats portals are known to emit, tried in
// order after the pure-digit unix case. Parsed as UTC.
var stalkerDateLayouts = []string{
	"January 2, 2006, 3:04 pm",
	"January 2, 2006, 3:04 PM",
	"2006-01-02 15:04:05",
	"02.01.2006",
}

func parseStalkerDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if isDigits(s) {
		ts, err := strconv.ParseInt(s, 10, 64)
		if err != nil || ts <= 0 {
			return time.Time{}
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range stalkerDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func stalkerFieldStr(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatInt(int64(x), 10)
	}
	return ""
}
