package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harrisonrobin/notedo/pkg/logging"
)

// Debouncer runs only the last function handed to Trigger, once the quiet
// period has passed without another Trigger.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger cancels the pending call, if any, and schedules fn.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Collector gathers keys on one Debouncer. When the quiet period ends fn
// receives every key added since the last call, sorted.
type Collector struct {
	debounce *Debouncer
	fn       func(keys []string)

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewCollector(delay time.Duration, fn func(keys []string)) *Collector {
	return &Collector{
		debounce: NewDebouncer(delay),
		fn:       fn,
		pending:  make(map[string]struct{}),
	}
}

// Add records key and restarts the quiet period.
func (c *Collector) Add(key string) {
	c.mu.Lock()
	c.pending[key] = struct{}{}
	c.mu.Unlock()
	c.debounce.Trigger(c.flush)
}

func (c *Collector) flush() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)
	c.fn(keys)
}

// Stop drops pending keys and ignores later ones.
func (c *Collector) Stop() {
	c.debounce.Stop()
	c.mu.Lock()
	c.pending = make(map[string]struct{})
	c.mu.Unlock()
}

// Job calls fn every interval until stopped. It can be started again after
// Stop.
type Job struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

func NewJob(name string, interval time.Duration, fn func(ctx context.Context)) *Job {
	return &Job{name: name, interval: interval, fn: fn}
}

// Start (re)starts the job with the given interval. A non-positive interval
// only stops it.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	j.Stop()

	j.mu.Lock()
	defer j.mu.Unlock()
	if interval <= 0 {
		return
	}
	j.interval = interval
	j.stopChan = make(chan struct{})
	j.done = make(chan struct{})
	logging.Info(j.name, "starting, every %v", interval)
	go j.loop(ctx, j.interval, j.stopChan, j.done)
}

func (j *Job) loop(ctx context.Context, interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.fn(ctx)
		}
	}
}

// Stop halts the job and waits for a running tick to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	stop, done := j.stopChan, j.done
	j.stopChan, j.done = nil, nil
	j.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	logging.Debug(j.name, "stopped")
}

func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stopChan != nil
}
