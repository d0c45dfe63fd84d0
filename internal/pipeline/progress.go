package pipeline

import "sync"

// Progress tracks a long-running operation's completion state so the
// polling API can report it incrementally instead of only at the end.
type Progress struct {
	mu      sync.Mutex
	total   int
	done    int
	running bool
}

// NewProgress creates an idle progress tracker.
func NewProgress() *Progress {
	return &Progress{}
}

// Start resets the tracker for a new run.
func (p *Progress) Start(total int) {
	p.mu.Lock()
	p.total = total
	p.done = 0
	p.running = true
	p.mu.Unlock()
}

// Step records one completed unit.
func (p *Progress) Step() {
	p.mu.Lock()
	p.done++
	p.mu.Unlock()
}

// Set records an absolute completion count, for callers that track
// their own units (the optimizer's grid cells).
func (p *Progress) Set(done, total int) {
	p.mu.Lock()
	p.done = done
	p.total = total
	p.mu.Unlock()
}

// Finish marks the run complete.
func (p *Progress) Finish() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() (done, total int, running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.total, p.running
}
