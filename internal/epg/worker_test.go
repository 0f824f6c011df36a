package epg

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/stalker"
)

func TestWorker_deliversGuide(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "handshake":
			fmt.Fprint(w, `{"js":{"token":"TOK1"}}`)
		case "get_profile":
			fmt.Fprint(w, `{"js":{"id":1}}`)
		case "get_epg_info":
			if got := r.URL.Query().Get("ch_id"); got != "5" {
				t.Errorf("ch_id = %q, want 5", got)
			}
			fmt.Fprint(w, `{"js":{"data":[{"name":"News","start_timestamp":1700000000,"stop_timestamp":1700003600}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	ready := make(chan []stalker.EPGProgram, 1)
	w := New(Config{
		PortalURL: ts.URL,
		MAC:       "00:1A:79:12:34:56",
		Delay:     time.Millisecond,
		OnReady: func(channelID string, programmes []stalker.EPGProgram) {
			ready <- programmes
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Request("5")
	select {
	case progs := <-ready:
		if len(progs) != 1 || progs[0].Name != "News" {
			t.Errorf("programmes = %+v", progs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("guide never delivered")
	}
}

func TestWorker_requestDedup(t *testing.T) {
	w := New(Config{PortalURL: "http://unused", MAC: "00:1A:79:00:00:00"})
	w.Request("9")
	w.Request("9")
	if got := len(w.queue); got != 1 {
		t.Errorf("queue length = %d, want duplicate dropped", got)
	}
	w.Request("10")
	if got := len(w.queue); got != 2 {
		t.Errorf("queue length = %d, want 2", got)
	}
}
