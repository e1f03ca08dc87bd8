package lake

// dedupSet tracks metric-tuple keys seen within a single build. Unlike a
// cross-request idempotency cache it needs no eviction: it lives for one
// build and is discarded with it.
type dedupSet struct {
	seen map[string]struct{}
}

func newDedupSet() *dedupSet {
	return &dedupSet{seen: make(map[string]struct{})}
}

// seenAndRecord reports whether key was already seen and records it if not.
func (d *dedupSet) seenAndRecord(key string) bool {
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}
