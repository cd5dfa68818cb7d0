package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the period between prediction fetches.
const DefaultPollInterval = time.Second

// Poller runs tick once per interval while started. In the default mode every tick
// runs in its own goroutine, so a slow fetch may overlap the next one. In strict
// mode a tick is skipped while the previous one is still running.
type Poller struct {
	interval time.Duration
	strict   bool
	tick     func()

	mu      sync.Mutex
	stop    chan struct{}
	loopWG  sync.WaitGroup
	ticksWG sync.WaitGroup
	busy    atomic.Bool
	skipped atomic.Int64
}

func NewPoller(interval time.Duration, strict bool, tick func()) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, strict: strict, tick: tick}
}

// Start launches the ticker. It returns false if the poller was already running.
func (p *Poller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return false
	}
	stop := make(chan struct{})
	p.stop = stop
	p.loopWG.Add(1)
	go p.loop(stop)
	return true
}

// Stop cancels the ticker. Ticks already in flight are left to finish.
func (p *Poller) Stop() bool {
	p.mu.Lock()
	if p.stop == nil {
		p.mu.Unlock()
		return false
	}
	close(p.stop)
	p.stop = nil
	p.mu.Unlock()

	p.loopWG.Wait()
	return true
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Skipped counts ticks dropped in strict mode.
func (p *Poller) Skipped() int64 { return p.skipped.Load() }

// Wait blocks until every launched tick has returned. Call it after Stop.
func (p *Poller) Wait() { p.ticksWG.Wait() }

func (p *Poller) loop(stop <-chan struct{}) {
	defer p.loopWG.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.fire()
		}
	}
}

func (p *Poller) fire() {
	if p.strict && !p.busy.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return
	}
	p.ticksWG.Add(1)
	go func() {
		defer p.ticksWG.Done()
		if p.strict {
			defer p.busy.Store(false)
		}
		p.tick()
	}()
}
