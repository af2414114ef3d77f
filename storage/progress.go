package storage

import "sync"

// Progress is how far the current track has played, in seconds. It is
// advanced locally between polls of the server.
type Progress struct {
	mu       sync.Mutex
	elapsed  float64
	duration float64
}

// Set replaces both values, typically with what the server reported.
func (p *Progress) Set(elapsed, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.elapsed = elapsed
	p.duration = duration
}

// Advance moves elapsed forward by delta, never past the duration when one
// is known.
func (p *Progress) Advance(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.elapsed += delta
	if p.duration > 0 && p.elapsed > p.duration {
		p.elapsed = p.duration
	}
}

func (p *Progress) Reset() {
	p.Set(0, 0)
}

func (p *Progress) Snapshot() (elapsed, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.elapsed, p.duration
}

// Percent returns elapsed as a percentage of the duration, 0 when the
// duration is unknown.
func (p *Progress) Percent() float64 {
	elapsed, duration := p.Snapshot()
	if duration <= 0 {
		return 0
	}

	percent := elapsed / duration * 100
	if percent > 100 {
		return 100
	}

	return percent
}
