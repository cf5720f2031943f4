package config

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Profiles holds the list of connection profiles and the one currently in
// use. The current profile is re-picked on a timer so that long crawls do
// not hammer a site with a single User-Agent. Readers only ever see the
// current profile; they never drive the rotation themselves.
type Profiles struct {
	mu      sync.RWMutex
	list    []Profile
	current Profile
}

// NewProfiles creates a profile set with the first profile selected.
func NewProfiles(list []Profile) *Profiles {
	p := &Profiles{list: list}
	if len(list) > 0 {
		p.current = list[0]
	}
	return p
}

// Current returns the profile currently in rotation.
func (p *Profiles) Current() Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Rotate picks a new random profile as the current one.
func (p *Profiles) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.list) < 2 {
		return
	}
	p.current = p.list[rand.Intn(len(p.list))]
}

// StartRefresh rotates the current profile on the given interval until the
// context is cancelled. It is started by the process entry point, not by
// the crawler.
func (p *Profiles) StartRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 || len(p.list) < 2 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Rotate()
				cur := p.Current()
				slog.Debug("Rotated connection profile", "user_agent", cur.UserAgent, "referrer", cur.Referrer)
			}
		}
	}()
}
