package crawler

import (
	"fmt"
	"sync"
	"testing"
)

func TestFrontierFIFO(t *testing.T) {
	f := NewFrontier()
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if !f.Enqueue(u) {
			t.Fatalf("Enqueue(%q) returned false", u)
		}
	}

	for _, want := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		got, ok := f.Dequeue()
		if !ok || got != want {
			t.Errorf("Dequeue() = %q, %v; want %q", got, ok, want)
		}
	}
	if _, ok := f.Dequeue(); ok {
		t.Error("Dequeue on empty frontier should report false")
	}
}

func TestFrontierDeduplication(t *testing.T) {
	f := NewFrontier()

	if !f.Enqueue("https://a.example") {
		t.Fatal("first Enqueue should succeed")
	}
	if f.Enqueue("https://a.example") {
		t.Error("pending URL must not be enqueued twice")
	}
	if f.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.Len())
	}

	if _, ok := f.Dequeue(); !ok {
		t.Fatal("Dequeue failed")
	}
	if !f.Visited("https://a.example") {
		t.Error("Dequeue must mark the URL visited")
	}
	if f.Enqueue("https://a.example") {
		t.Error("visited URL must not be re-enqueued")
	}
}

func TestFrontierMarkVisited(t *testing.T) {
	f := NewFrontier()
	f.MarkVisited("https://seed.example")

	if f.Enqueue("https://seed.example") {
		t.Error("URL marked visited must not be enqueued")
	}
	if f.Pending("https://seed.example") {
		t.Error("URL should not be pending")
	}
	if f.VisitedCount() != 1 {
		t.Errorf("VisitedCount() = %d, want 1", f.VisitedCount())
	}
}

func TestFrontierClaim(t *testing.T) {
	f := NewFrontier()
	f.Enqueue("https://a.example/p/1")
	f.Enqueue("https://a.example/p/2")

	if !f.Claim("https://a.example/p/1") {
		t.Fatal("Claim of a pending URL should succeed")
	}
	if f.Claim("https://a.example/p/1") {
		t.Error("Second Claim must report the URL as visited")
	}
	if f.Pending("https://a.example/p/1") || f.Len() != 1 {
		t.Errorf("Claimed URL should leave the queue, Len() = %d", f.Len())
	}
	if f.Enqueue("https://a.example/p/1") {
		t.Error("Claimed URL must not be re-enqueued")
	}

	got, ok := f.Dequeue()
	if !ok || got != "https://a.example/p/2" {
		t.Errorf("Dequeue() = %q, %v; want the unclaimed URL", got, ok)
	}
	if _, ok := f.Dequeue(); ok {
		t.Error("Claimed URL must not be dequeued")
	}

	if !f.Claim("https://b.example/p/3") || !f.Visited("https://b.example/p/3") {
		t.Error("Claim of an unknown URL should mark it visited")
	}
}

func TestFrontierConcurrentDequeue(t *testing.T) {
	f := NewFrontier()
	const n = 200
	for i := 0; i < n; i++ {
		f.Enqueue(fmt.Sprintf("https://site%d.example", i))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				u, ok := f.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[u]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("Expected %d distinct URLs, got %d", n, len(seen))
	}
	for u, count := range seen {
		if count != 1 {
			t.Errorf("%s dequeued %d times", u, count)
		}
	}
}
