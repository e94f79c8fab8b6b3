package pipeline

import "sync"

// hintMap is a bounded insertion-ordered map. Updating a key keeps its
// position.
type hintMap struct {
	max int

	mu     sync.Mutex
	values map[string]string
	order  []string
}

func newHintMap(maxEntries int) *hintMap {
	return &hintMap{max: maxEntries, values: make(map[string]string)}
}

func (h *hintMap) get(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	return v, ok
}

func (h *hintMap) put(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.values[key]; !ok {
		h.order = append(h.order, key)
	}
	h.values[key] = value

	for len(h.order) > h.max {
		delete(h.values, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *hintMap) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}

func (h *hintMap) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = make(map[string]string)
	h.order = nil
}
