package checker

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/httpclient"
)

// StreamVerifier is the optional tier-2 check: after credentials validate,
// confirm one live stream actually delivers bytes. Some providers keep the
// API alive long after the streams die. Disabled by default because it
// downloads real stream data.
type StreamVerifier struct {
	Client     *http.Client
	UserAgent  string
	SpeedFloor float64 // MB/s; below this the stream counts as dead

	// sampleWindow bounds how long we read from the stream.
	sampleWindow time.Duration
}

func NewStreamVerifier(userAgent string, speedFloor float64) *StreamVerifier {
	if speedFloor <= 0 {
		speedFloor = 0.05
	}
	return &StreamVerifier{
		Client:       httpclient.WithTimeout(15 * time.Second),
		UserAgent:    userAgent,
		SpeedFloor:   speedFloor,
		sampleWindow: 3 * time.Second,
	}
}

var streamIDPattern = regexp.MustCompile(`"stream_id"\s*:\s*"?(\d+)"?`)

// firstStreamID scans the streaming get_live_streams response for the first
// stream_id without parsing the whole document. Channel lists can run to tens
// of megabytes; 64KB is plenty to find one ID.
func (v *StreamVerifier) firstStreamID(ctx context.Context, baseURL, username, password string) string {
	u := strings.TrimRight(baseURL, "/") + "/player_api.php?username=" + username + "&password=" + password + "&action=get_live_streams"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}
	resp, err := v.Client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 8*1024)
	for len(buf) < 64*1024 {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if m := streamIDPattern.FindSubmatch(buf); m != nil {
				return string(m[1])
			}
		}
		if err != nil {
			break
		}
	}
	return ""
}

// VerifyStreamReachable reports whether url delivers bytes at a live rate.
func (v *StreamVerifier) VerifyStreamReachable(ctx context.Context, url string) bool {
	speed, _ := v.downloadSpeed(ctx, url, nil)
	return speed > v.SpeedFloor
}

// VerifyAccountStreams picks the account's first live stream and probes it.
// An account with no streams passes: there is nothing to test.
func (v *StreamVerifier) VerifyAccountStreams(ctx context.Context, baseURL, username, password string) (bool, string) {
	streamID := v.firstStreamID(ctx, baseURL, username, password)
	if streamID == "" {
		return true, "No streams to test"
	}
	base := strings.TrimRight(baseURL, "/")
	streamURL := fmt.Sprintf("%s/%s/%s/%s.ts", base, username, password, streamID)
	headers := map[string]string{"Referer": base + "/"}
	speed, err := v.downloadSpeed(ctx, streamURL, headers)
	if speed > v.SpeedFloor {
		return true, fmt.Sprintf("Speed: %.2f MB/s", speed)
	}
	if err != nil {
		return false, "Stream unreachable"
	}
	return false, "Stream unreachable"
}

// downloadSpeed reads the stream for the sample window (or up to 512KB,
// whichever comes first) and returns the observed MB/s. Partial reads before
// an error still count; a stalling-but-alive stream is not a dead one.
func (v *StreamVerifier) downloadSpeed(ctx context.Context, url string, headers map[string]string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	start := time.Now()
	resp, err := v.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var downloaded int
	chunk := make([]byte, 64*1024)
	deadline := start.Add(v.sampleWindow)
	for {
		n, err := resp.Body.Read(chunk)
		downloaded += n
		if err != nil || time.Now().After(deadline) || downloaded > 512*1024 {
			break
		}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed == 0 {
		return 0, nil
	}
	return float64(downloaded) / (1024 * 1024) / elapsed, nil
}
