package notify

import (
	"strings"
	"sync"
)

// Handler is called with every event matched to it. Handlers run on the
// Subscriber's goroutine and should return quickly.
type Handler func(Event)

type entry struct {
	key     string
	handler Handler
}

// Registry maps event keys to handlers.
//
// An event goes to the handler of the first key, in registration order,
// that appears anywhere in the raw line. Only that handler runs, even when
// later keys match too, so a key registered early shadows longer keys
// registered after it ("playlist" before "playlist newsong" means the
// "playlist newsong" handler never runs).
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers handler for key. Adding a key again replaces its handler
// but keeps its original position.
func (r *Registry) Add(key string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i].handler = handler
			return
		}
	}

	r.entries = append(r.entries, entry{key: key, handler: handler})
}

// AddAll registers the same handler for several keys.
func (r *Registry) AddAll(keys []string, handler Handler) {
	for _, key := range keys {
		r.Add(key, handler)
	}
}

func (r *Registry) Remove(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		for i := range r.entries {
			if r.entries[i].key == key {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				break
			}
		}
	}
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.key)
	}

	return keys
}

// Categories returns the notification categories to subscribe to: the first
// word of every key, without duplicates and without synthetic events.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.entries))
	categories := make([]string, 0, len(r.entries))

	for _, e := range r.entries {
		if IsSynthetic(e.key) {
			continue
		}

		category := strings.SplitN(e.key, " ", 2)[0]
		if category == "" {
			continue
		}

		if _, ok := seen[category]; ok {
			continue
		}

		seen[category] = struct{}{}
		categories = append(categories, category)
	}

	return categories
}

// Match returns the key and handler an event line would be dispatched to.
func (r *Registry) Match(line string) (string, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if strings.Contains(line, e.key) {
			return e.key, e.handler, true
		}
	}

	return "", nil, false
}

// Dispatch runs the handler matching ev.Raw and reports whether there was
// one.
func (r *Registry) Dispatch(ev Event) bool {
	_, handler, ok := r.Match(ev.Raw)
	if !ok {
		return false
	}

	handler(ev)
	return true
}
