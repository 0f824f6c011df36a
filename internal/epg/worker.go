// Package epg fetches short-term programme guides from a Stalker portal in
// the background, so guide lookups never block a check batch.
package epg

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/httpclient"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/stalker"
)

// Config controls the EPG background worker.
type Config struct {
	// PortalURL and MAC identify the portal the worker logs in to.
	PortalURL string
	MAC       string

	// Timezone is sent in the portal cookie set. Default: Europe/London.
	Timezone string

	// Timeout is the per-request HTTP timeout. Default: 10 s.
	Timeout time.Duration

	// Delay is the minimum wait between guide fetches, keeping the worker a
	// polite guest on the portal. Default: 200 ms.
	Delay time.Duration

	// Period is the guide window in seconds requested per channel.
	// Default: 3600.
	Period int

	// OnReady is called for every channel whose guide was fetched. May be nil.
	OnReady func(channelID string, programmes []stalker.EPGProgram)
}

func (c *Config) setDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/London"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Delay <= 0 {
		c.Delay = 200 * time.Millisecond
	}
	if c.Period <= 0 {
		c.Period = 3600
	}
}

// Worker drains a queue of channel IDs against one portal session.
// Call Run(ctx) once; cancel ctx to stop.
type Worker struct {
	cfg   Config
	queue chan string

	mu      sync.Mutex
	pending map[string]bool
}

// New creates a Worker. The queue is bounded; Request drops when it is full.
func New(cfg Config) *Worker {
	cfg.setDefaults()
	return &Worker{
		cfg:     cfg,
		queue:   make(chan string, 256),
		pending: make(map[string]bool),
	}
}

// Request queues a channel for guide fetching. Duplicate requests for a
// channel already waiting are dropped, as are requests past queue capacity.
func (w *Worker) Request(channelID string) {
	w.mu.Lock()
	if w.pending[channelID] {
		w.mu.Unlock()
		return
	}
	w.pending[channelID] = true
	w.mu.Unlock()

	select {
	case w.queue <- channelID:
	default:
		w.mu.Lock()
		delete(w.pending, channelID)
		w.mu.Unlock()
		log.Printf("epg: queue full, dropping channel %s", channelID)
	}
}

// Run logs in to the portal and serves queued guide requests until ctx is
// cancelled. Guide fetches are best-effort: a failed fetch is logged and the
// channel is simply not delivered.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("epg: worker started (portal=%s, delay=%s)", w.cfg.PortalURL, w.cfg.Delay)

	client, err := httpclient.NewSession(w.cfg.Timeout)
	if err != nil {
		log.Printf("epg: session setup failed, worker exiting: %v", err)
		return
	}
	portal, err := stalker.New(w.cfg.PortalURL, w.cfg.MAC, w.cfg.Timezone, client)
	if err != nil {
		log.Printf("epg: bad portal URL, worker exiting: %v", err)
		return
	}
	session, err := portal.Handshake(ctx)
	if err != nil {
		log.Printf("epg: handshake failed, worker exiting: %v", err)
		return
	}
	if _, session, err = portal.Profile(ctx, session); err != nil {
		log.Printf("epg: profile failed, worker exiting: %v", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case channelID := <-w.queue:
			w.mu.Lock()
			delete(w.pending, channelID)
			w.mu.Unlock()

			programmes := portal.EPG(ctx, session, channelID, w.cfg.Period)
			if programmes == nil {
				log.Printf("epg: no guide for channel %s", channelID)
			} else if w.cfg.OnReady != nil {
				w.cfg.OnReady(channelID, programmes)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.Delay):
			}
		}
	}
}
