package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newTransport(),
	}
}

// newTransport builds the tuned transport shared by all checker requests.
// Certificate verification is disabled: IPTV panels routinely serve expired
// or self-signed certificates and the checker must still classify them.
func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
	}
}

// Default returns the shared tuned HTTP client used for Xtream API calls.
// It carries no cookie state, so it is safe to reuse across accounts.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport
// settings as Default.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// NewSession returns a fresh client with its own cookie jar. Stalker checks
// need one per account so portal cookies (mac, token) never leak between
// accounts in a batch.
func NewSession(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: newTransport(),
	}, nil
}
