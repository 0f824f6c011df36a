package stalker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newTestPortal(t *testing.T, handler http.Handler) (*Portal, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	p, err := New(ts.URL, testMAC, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, ts
}

func TestHandshake_plainToken(t *testing.T) {
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stalker_portal/server/load.php" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("action"); got != "handshake" {
			t.Errorf("action = %q, want handshake", got)
		}
		fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
	}))

	s, err := p.Handshake(context.Background())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if s.Endpoint != "/stalker_portal/server/load.php" {
		t.Errorf("endpoint = %q", s.Endpoint)
	}
	if s.Token != "TOK1" {
		t.Errorf("token = %q, want TOK1", s.Token)
	}
}

func TestHandshake_prehashFallback(t *testing.T) {
	var fallbackSeen bool
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("token") == "" {
			// Plain handshake: answer without a token to force the fallback.
			fmt.Fprint(w, `{"js":{}}`)
			return
		}
		fallbackSeen = true
		if got, want := q.Get("prehash"), prehash(q.Get("token")); got != want {
			t.Errorf("prehash = %q, want %q", got, want)
		}
		fmt.Fprint(w, `{"js":{}}`)
	}))

	s, err := p.Handshake(context.Background())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if !fallbackSeen {
		t.Fatal("fallback request never sent")
	}
	if len(s.Token) != 32 {
		t.Errorf("fallback token length = %d, want 32", len(s.Token))
	}
}

func TestHandshake_endpointOrder(t *testing.T) {
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/server/load.php" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"js":{"token":"TOK2"}}`)
	}))

	s, err := p.Handshake(context.Background())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if s.Endpoint != "/server/load.php" {
		t.Errorf("endpoint = %q, want /server/load.php", s.Endpoint)
	}
}

func TestHandshake_allFail(t *testing.T) {
	p, _ := newTestPortal(t, http.NotFoundHandler())
	if _, err := p.Handshake(context.Background()); !errors.Is(err, ErrHandshake) {
		t.Fatalf("err = %v, want ErrHandshake", err)
	}
}

func TestProfile_identityAndRotation(t *testing.T) {
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "handshake":
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
		case "get_profile":
			if got := r.Header.Get("Authorization"); got != "Bearer TOK1" {
				t.Errorf("Authorization = %q, want Bearer TOK1", got)
			}
			if c, err := r.Cookie("mac"); err != nil || c.Value != testMAC {
				t.Errorf("mac cookie = %v, %v", c, err)
			}
			if got := q.Get("sn"); got != Serial(testMAC) {
				t.Errorf("sn = %q, want %q", got, Serial(testMAC))
			}
			if q.Get("device_id") != DeviceID(testMAC) || q.Get("device_id2") != DeviceID(testMAC) {
				t.Error("device_id/device_id2 mismatch")
			}
			if got := q.Get("signature"); got != Signature(testMAC) {
				t.Errorf("signature = %q, want %q", got, Signature(testMAC))
			}
			fmt.Fprint(w, `{"js":{"id":42,"status":"1","token":"ROTATED"}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	s, err := p.Handshake(ctx)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	profile, s, err := p.Profile(ctx, s)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if s.Token != "ROTATED" {
		t.Errorf("session token = %q, want ROTATED", s.Token)
	}
	if _, ok := profile["id"]; !ok {
		t.Error("profile missing id")
	}
}

func TestProfile_authInvalid(t *testing.T) {
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "handshake" {
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
			return
		}
		fmt.Fprint(w, `{"js":{"status":"0"}}`)
	}))

	ctx := context.Background()
	s, err := p.Handshake(ctx)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if _, _, err := p.Profile(ctx, s); !errors.Is(err, ErrAuthInvalid) {
		t.Fatalf("err = %v, want ErrAuthInvalid", err)
	}
}

func TestStreams_paginationCap(t *testing.T) {
	var pagesFetched int
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "handshake":
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
		case "get_ordered_list":
			pagesFetched++
			page, _ := strconv.Atoi(q.Get("p"))
			fmt.Fprintf(w, `{"js":{"total_items":"100","data":[{"id":%d,"name":"a","cmd":"x"},{"id":%d,"name":"b","cmd":"y"}]}}`,
				page*2-1, page*2)
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	s, err := p.Handshake(ctx)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	streams, err := p.Streams(ctx, s, KindLive, "*")
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if pagesFetched != 5 {
		t.Errorf("pages fetched = %d, want 5", pagesFetched)
	}
	if len(streams) != 10 {
		t.Errorf("streams = %d, want 10", len(streams))
	}
}

func TestStreams_genreParam(t *testing.T) {
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "handshake":
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
		case "get_ordered_list":
			if q.Get("type") == "itv" && q.Get("genre") != "0" {
				t.Errorf("genre = %q, want 0 for wildcard", q.Get("genre"))
			}
			fmt.Fprint(w, `{"js":{"total_items":"1","data":[{"id":"1","name":"ch","cmd":"c"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	s, _ := p.Handshake(ctx)
	if _, err := p.Streams(ctx, s, KindLive, "*"); err != nil {
		t.Fatalf("Streams: %v", err)
	}
}

func TestCreateLink_stripsPlayerPrefix(t *testing.T) {
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "handshake":
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
		case "create_link":
			fmt.Fprint(w, `{"js":{"cmd":"ffmpeg http://cdn.example/live/1.ts"}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	s, _ := p.Handshake(ctx)
	link, err := p.CreateLink(ctx, s, KindLive, "cmd-token")
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link != "http://cdn.example/live/1.ts" {
		t.Errorf("link = %q", link)
	}
}

func TestEPG_bestEffort(t *testing.T) {
	fail := true
	p, _ := newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "handshake":
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
		case "get_epg_info":
			if fail {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"js":{"data":[{"name":"News","start_timestamp":1700000000,"stop_timestamp":1700003600}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	s, _ := p.Handshake(ctx)
	if got := p.EPG(ctx, s, "7", 0); got != nil {
		t.Errorf("EPG on server error = %v, want nil", got)
	}
	fail = false
	progs := p.EPG(ctx, s, "7", 0)
	if len(progs) != 1 || progs[0].Name != "News" {
		t.Errorf("EPG = %+v", progs)
	}
}
