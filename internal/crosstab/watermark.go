package crosstab

import "sync"

// Watermark remembers the newest signal timestamp a tab has processed.
type Watermark struct {
	mu   sync.Mutex
	last int64
}

// Advance moves the watermark to ts and reports true only when ts is strictly newer.
func (w *Watermark) Advance(ts int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ts <= w.last {
		return false
	}
	w.last = ts
	return true
}

func (w *Watermark) Last() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
