package xrpl

import (
	"sync"
	"time"
)

// PeriodicCaller runs fn every interval until stopped. Postpone pushes the
// next call back a full interval, so an active connection is not pinged.
type PeriodicCaller struct {
	interval time.Duration
	fn       func()
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func NewPeriodicCaller(interval time.Duration, fn func()) *PeriodicCaller {
	return &PeriodicCaller{
		interval: interval,
		fn:       fn,
	}
}

func (p *PeriodicCaller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval <= 0 || p.timer != nil || p.stopped {
		return
	}

	p.timer = time.AfterFunc(p.interval, p.tick)
}

func (p *PeriodicCaller) tick() {
	p.fn()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.timer.Reset(p.interval)
	}
}

func (p *PeriodicCaller) Postpone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil && !p.stopped {
		p.timer.Reset(p.interval)
	}
}

func (p *PeriodicCaller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
}
