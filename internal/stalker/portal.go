// Package stalker speaks the reverse-engineered Stalker/MAG portal protocol.
// The portal only talks to what it believes is MAG hardware, so every request
// carries a set-top-box firmware User-Agent, device cookies, and identity
// digests derived from the MAC address.
package stalker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/httpclient"
)

const (
	// magUserAgent and the cookie/header names below are part of the
	// compatibility surface; real portals reject anything else.
	magUserAgent = "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG200 stbapp ver: 2 rev: 250 Safari/533.3"

	// profileVer is the firmware descriptor MAG boxes report on get_profile.
	profileVer = "ImageDescription: 0.2.18-r23-250; ImageDate: Fri Jan 15 15:00:00 2021; PORTAL version: 5.6.1; API Version: JS API version: 343; STB API version: 146; Player Engine version: 0x58c"

	defaultTimezone = "Europe/London"
	defaultTimeout  = 10 * time.Second
)

// handshakeEndpoints are the candidate API paths, probed in order. Portals
// are deployed under several historical layouts.
var handshakeEndpoints = []string{
	"/stalker_portal/server/load.php",
	"/server/load.php",
	"/portal.php",
	"/c/portal.php",
}

var (
	// ErrHandshake means no candidate endpoint yielded a token.
	ErrHandshake = errors.New("stalker: handshake failed")
	// ErrAuthInvalid means the portal answered get_profile without an account id.
	ErrAuthInvalid = errors.New("stalker: profile auth invalid")
)

// Session is the immutable session context for one portal conversation:
// the endpoint that answered the handshake and the current token. Token
// rotation replaces the whole value; callers must thread the returned
// Session through subsequent calls.
type Session struct {
	Endpoint string
	Token    string
}

// Portal is a client for one portal+MAC pair. Construct a fresh Portal (and
// a fresh cookie-jar client) per check so cookies never cross accounts.
type Portal struct {
	origin string
	mac    string
	tz     string
	client *http.Client
}

// New builds a Portal for portalURL and mac. A nil client gets a fresh
// cookie-jar session with the default timeout. tz may be empty.
func New(portalURL, mac, tz string, client *http.Client) (*Portal, error) {
	origin := NormalizeURL(portalURL)
	if origin == "" {
		return nil, errors.New("stalker: empty portal URL")
	}
	if client == nil {
		var err error
		client, err = httpclient.NewSession(defaultTimeout)
		if err != nil {
			return nil, err
		}
	}
	if tz == "" {
		tz = defaultTimezone
	}
	p := &Portal{
		origin: origin,
		mac:    strings.ToUpper(strings.TrimSpace(mac)),
		tz:     tz,
		client: client,
	}
	if err := p.seedCookies(); err != nil {
		return nil, err
	}
	return p, nil
}

// Origin returns the normalized portal origin.
func (p *Portal) Origin() string { return p.origin }

func (p *Portal) seedCookies() error {
	u, err := url.Parse(p.origin)
	if err != nil {
		return fmt.Errorf("stalker: bad portal URL: %w", err)
	}
	if p.client.Jar != nil {
		p.client.Jar.SetCookies(u, []*http.Cookie{
			{Name: "mac", Value: p.mac},
			{Name: "stb_lang", Value: "en"},
			{Name: "timezone", Value: p.tz},
		})
	}
	return nil
}

func (p *Portal) setTokenCookie(token string) {
	if p.client.Jar == nil {
		return
	}
	if u, err := url.Parse(p.origin); err == nil {
		p.client.Jar.SetCookies(u, []*http.Cookie{{Name: "token", Value: token}})
	}
}

// envelope is the standard portal response wrapper.
type envelope struct {
	Js json.RawMessage `json:"js"`
}

// get issues one portal GET. bearer may be empty (handshake). retry enables a
// single 429/5xx retry, used for catalog/EPG calls only.
func (p *Portal) get(ctx context.Context, endpoint string, params url.Values, bearer string, retry bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.origin+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", magUserAgent)
	req.Header.Set("Referer", p.origin+"/stalker_portal/c/")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	var resp *http.Response
	if retry {
		resp, err = httpclient.DoWithRetry(ctx, p.client, req, httpclient.DefaultRetryPolicy)
	} else {
		resp, err = p.client.Do(req)
	}
	if err != nil {
		return nil, 0, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func baseParams() url.Values {
	return url.Values{
		"type":          {"stb"},
		"action":        {"handshake"},
		"token":         {""},
		"JsHttpRequest": {"1-xml"},
	}
}

// Handshake probes the candidate endpoints for a session token. For each
// endpoint it first tries the plain handshake; if the portal returns no
// token it retries with a locally generated token and its SHA1 prehash,
// which strict portals accept as authentication proof. The first endpoint
// that yields a token wins.
func (p *Portal) Handshake(ctx context.Context) (Session, error) {
	for _, endpoint := range handshakeEndpoints {
		body, status, err := p.get(ctx, endpoint, baseParams(), "", false)
		if err == nil && status == http.StatusOK {
			var env envelope
			var js struct {
				Token string `json:"token"`
			}
			if json.Unmarshal(body, &env) == nil && json.Unmarshal(env.Js, &js) == nil && js.Token != "" {
				p.setTokenCookie(js.Token)
				return Session{Endpoint: endpoint, Token: js.Token}, nil
			}
		}

		// Manual fallback: present our own token plus prehash. Any parseable
		// 200 response means the portal accepted it.
		token := randomToken()
		params := baseParams()
		params.Set("token", token)
		params.Set("prehash", prehash(token))
		body, status, err = p.get(ctx, endpoint, params, "", false)
		if err == nil && status == http.StatusOK && json.Valid(body) {
			p.setTokenCookie(token)
			return Session{Endpoint: endpoint, Token: token}, nil
		}
	}
	return Session{}, ErrHandshake
}

// Profile authenticates the device and returns the raw profile object. The
// portal may rotate the token in its reply; the returned Session carries the
// rotated token and must be used for all subsequent calls.
func (p *Portal) Profile(ctx context.Context, s Session) (map[string]any, Session, error) {
	params := url.Values{
		"type":             {"stb"},
		"action":           {"get_profile"},
		"hd":               {"1"},
		"ver":              {profileVer},
		"num_banks":        {"2"},
		"sn":               {Serial(p.mac)},
		"stb_type":         {"MAG250"},
		"client_type":      {"STB"},
		"image_version":    {"218"},
		"video_out":        {"hdmi"},
		"device_id":        {DeviceID(p.mac)},
		"device_id2":       {DeviceID(p.mac)},
		"signature":        {Signature(p.mac)},
		"auth_second_step": {"1"},
		"hw_version":       {"1.7-BD-00"},
		"not_valid_token":  {"0"},
		"timestamp":        {strconv.FormatInt(time.Now().Unix(), 10)},
		"JsHttpRequest":    {"1-xml"},
	}
	body, status, err := p.get(ctx, s.Endpoint, params, s.Token, false)
	if err != nil {
		return nil, s, err
	}
	if status != http.StatusOK {
		return nil, s, fmt.Errorf("stalker: get_profile HTTP %d", status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, s, fmt.Errorf("stalker: get_profile: %w", err)
	}
	var js map[string]any
	if err := json.Unmarshal(env.Js, &js); err != nil {
		return nil, s, fmt.Errorf("stalker: get_profile: %w", err)
	}

	// Token rotation: downstream calls must use the replacement.
	if tok, ok := js["token"].(string); ok && tok != "" {
		s = Session{Endpoint: s.Endpoint, Token: tok}
		p.setTokenCookie(tok)
	}

	if _, ok := js["id"]; !ok {
		return js, s, ErrAuthInvalid
	}
	return js, s, nil
}
