package watchdog

import (
	"sync"
	"time"

	"github.com/five82/tunerwatch/internal/clock"
)

// Debouncer runs fn once calls to Trigger have stopped for delay. Each
// Trigger restarts the wait instead of adding to it.
type Debouncer struct {
	mu      sync.Mutex
	clock   clock.Clock
	delay   time.Duration
	fn      func()
	timer   *clock.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer returns a Debouncer calling fn on c after delay.
func NewDebouncer(c clock.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: c, delay: delay, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	if d.delay <= 0 {
		d.fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.timer.Stop()
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Stop cancels a pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.timer.Stop()
	d.timer = nil
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}
