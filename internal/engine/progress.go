package engine

import (
	"sync"
)

// Progress counts the bytes completed for one task across all of its parts.
// Each Advance is published while the lock is held, so the values a publisher
// sees are strictly increasing.
type Progress struct {
	mu        sync.Mutex
	label     string
	total     int64
	completed int64
	publish   func(completed, total int64)
}

// NewProgress starts the counter at initial, the bytes already on disk.
func NewProgress(label string, total, initial int64, publish func(completed, total int64)) *Progress {
	p := &Progress{
		label:     label,
		total:     total,
		completed: max(initial, 0),
		publish:   publish,
	}
	if p.publish != nil {
		p.publish(p.completed, p.total)
	}
	return p
}

func (p *Progress) Advance(delta int64) {
	if delta <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed += delta
	if p.publish != nil {
		p.publish(p.completed, p.total)
	}
}

func (p *Progress) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

func (p *Progress) Total() int64 {
	return p.total
}

func (p *Progress) Label() string {
	return p.label
}
