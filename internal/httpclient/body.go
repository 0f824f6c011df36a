package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// maxBodyBytes caps how much of an API response we read. Panel metadata
// responses are small; anything larger is a stream or a junk page.
const maxBodyBytes = 8 << 20

// ReadBody reads and closes resp.Body, decoding Content-Encoding when the
// transport did not already do so. Cloudflare-fronted portals serve brotli to
// clients that advertise it, and some panels gzip responses without being
// asked.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}
