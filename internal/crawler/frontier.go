package crawler

import "sync"

// Frontier is the FIFO queue of URLs awaiting a visit together with the
// set of keys already visited. A URL is never pending twice and a visited
// URL is never re-added. Dequeue commits the visited state in the same
// critical section, so concurrent callers cannot both obtain one URL.
type Frontier struct {
	mu      sync.Mutex
	queue   []string
	pending map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{
		pending: make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Enqueue adds url unless it is already pending or visited.
// It reports whether the URL was added.
func (f *Frontier) Enqueue(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.pending[url]; ok {
		return false
	}
	f.pending[url] = struct{}{}
	f.queue = append(f.queue, url)
	return true
}

// Dequeue removes and returns the earliest enqueued URL, marking it visited.
// ok is false when the frontier is empty.
func (f *Frontier) Dequeue() (url string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.queue) > 0 {
		url = f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		if _, live := f.pending[url]; !live {
			// claimed while queued
			continue
		}
		delete(f.pending, url)
		f.visited[url] = struct{}{}
		return url, true
	}
	return "", false
}

// Claim marks key visited and withdraws it from the queue if it is pending.
// It reports false when key was already visited.
func (f *Frontier) Claim(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[key]; ok {
		return false
	}
	delete(f.pending, key)
	f.visited[key] = struct{}{}
	return true
}

// MarkVisited records key as processed. A pending entry with the same key
// stays queued; it was admitted before the key was known.
func (f *Frontier) MarkVisited(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[key] = struct{}{}
}

// Visited reports whether key has been processed
func (f *Frontier) Visited(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

// Pending reports whether url is waiting in the queue
func (f *Frontier) Pending(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[url]
	return ok
}

// Len returns the number of pending URLs
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// VisitedCount returns the number of visited keys
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
