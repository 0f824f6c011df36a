package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/httpclient"
)

// Xtream checks credentials against the Xtream Codes player_api.php API.
// The zero value is not usable; construct via NewXtream.
type Xtream struct {
	Client    *http.Client
	UserAgent string
}

// NewXtream returns an Xtream client sharing the tuned default transport.
// Xtream carries no session state, so one client serves every account.
func NewXtream(timeout time.Duration, userAgent string) *Xtream {
	return &Xtream{
		Client:    httpclient.WithTimeout(timeout),
		UserAgent: userAgent,
	}
}

func (x *Xtream) apiURL(baseURL, username, password string) string {
	params := url.Values{
		"username": {username},
		"password": {password},
	}
	return strings.TrimRight(baseURL, "/") + "/player_api.php?" + params.Encode()
}

func (x *Xtream) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if x.UserAgent != "" {
		req.Header.Set("User-Agent", x.UserAgent)
	}
	return x.Client.Do(req)
}

// Check authenticates against the panel and, on success, gathers counts.
// Every failure mode is folded into the CheckResult; Check never returns an
// error and NewBackoff is left for the orchestrator to fill.
func (x *Xtream) Check(ctx context.Context, baseURL, username, password string) account.CheckResult {
	res := account.CheckResult{Status: account.StatusError}
	if baseURL == "" || username == "" {
		res.Message = "Missing URL or Username"
		return res
	}

	resp, err := x.get(ctx, x.apiURL(baseURL, username, password))
	if err != nil {
		res.Message = "Network Error: " + err.Error()
		return res
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		res.Message = "Network Error: " + err.Error()
		return res
	}
	if resp.StatusCode != http.StatusOK {
		res.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}

	var payload struct {
		UserInfo   json.RawMessage `json:"user_info"`
		ServerInfo json.RawMessage `json:"server_info"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Some panels return an empty body or plain text on failure; keep a
		// snippet for diagnosis.
		res.Message = "Invalid JSON response: " + snippet(body, 50)
		return res
	}

	var userInfo map[string]any
	_ = json.Unmarshal(payload.UserInfo, &userInfo)
	res.RawUserInfo = string(payload.UserInfo)
	res.RawServerInfo = string(payload.ServerInfo)

	if anyToStr(userInfo["auth"]) == "0" {
		res.Status = account.StatusAuthFailed
		if msg, _ := userInfo["message"].(string); msg != "" {
			res.Message = msg
		} else {
			res.Message = "Authentication failed"
		}
		return res
	}

	res.Success = true
	res.Status = account.StatusActive
	if st, _ := userInfo["status"].(string); st != "" {
		res.Status = account.Status(st)
	}
	if v, ok := userInfo["is_trial"]; ok {
		trial := anyToStr(v) == "1"
		res.IsTrial = &trial
	}
	res.ActiveConns = anyToIntPtr(userInfo["active_cons"])
	res.MaxConns = anyToIntPtr(userInfo["max_connections"])

	// exp_date is a unix timestamp; unparseable values leave Expiry unset.
	if ts, err := strconv.ParseInt(anyToStr(userInfo["exp_date"]), 10, 64); err == nil && ts > 0 {
		res.Expiry = time.Unix(ts, 0).UTC()
	}

	live, vod, series := x.counts(ctx, baseURL, username, password)
	res.LiveCount, res.VodCount, res.SeriesCount = &live, &vod, &series
	return res
}

// countActions maps result slots to player_api actions.
var countActions = [3]string{"get_live_streams", "get_vod_streams", "get_series"}

// counts fetches the live/VOD/series list sizes concurrently. The three
// requests are independent; any individual failure just reports 0 for that
// category. The per-host semaphore keeps the fan-out polite.
func (x *Xtream) counts(ctx context.Context, baseURL, username, password string) (live, vod, series int) {
	base := x.apiURL(baseURL, username, password)
	var results [3]int
	var wg sync.WaitGroup
	for i, action := range countActions {
		i, action := i, action
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := httpclient.GlobalHostSem.Acquire(baseURL)
			defer release()
			results[i] = x.fetchCount(ctx, base+"&action="+action)
		}()
	}
	wg.Wait()
	return results[0], results[1], results[2]
}

func (x *Xtream) fetchCount(ctx context.Context, rawURL string) int {
	resp, err := x.get(ctx, rawURL)
	if err != nil {
		return 0
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil || resp.StatusCode != http.StatusOK {
		return 0
	}
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err != nil {
		return 0
	}
	return len(list)
}

func snippet(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		s = s[:n]
	}
	return s
}

// anyToStr renders the panels' loosely typed scalars ("0", 0, 0.0) uniformly.
func anyToStr(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case json.Number:
		return x.String()
	}
	return ""
}

func anyToIntPtr(v any) *int {
	s := anyToStr(v)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
