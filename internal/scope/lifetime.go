package scope

import "sync"

// Lifetime collects the cache-lifetime metadata a render observes: the
// shortest revalidate/expire/stale windows of any cache entry it read.
// Merges are synchronous, so nothing is left pending when the final
// sequence step reads the collected values.
type Lifetime struct {
	mu         sync.Mutex
	set        bool
	revalidate int
	expire     int
	stale      int
}

// NewLifetime returns an empty collector.
func NewLifetime() *Lifetime {
	return &Lifetime{}
}

// Merge narrows the collected lifetime to the given windows (seconds).
// Zero values mean "no constraint" and are ignored.
func (l *Lifetime) Merge(revalidate, expire, stale int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		l.set = true
		l.revalidate, l.expire, l.stale = revalidate, expire, stale
		return
	}
	l.revalidate = minWindow(l.revalidate, revalidate)
	l.expire = minWindow(l.expire, expire)
	l.stale = minWindow(l.stale, stale)
}

// Snapshot returns the collected windows. All zero when nothing merged.
func (l *Lifetime) Snapshot() (revalidate, expire, stale int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revalidate, l.expire, l.stale
}

func minWindow(a, b int) int {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}
