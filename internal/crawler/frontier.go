package crawler

import "sync"

type pageState int

const (
	stateCacheHit pageState = iota + 1
	stateFetched
	stateFetchFailed
	stateNonHTML
)

func (s pageState) String() string {
	switch s {
	case stateCacheHit:
		return "cache-hit"
	case stateFetched:
		return "fetched"
	case stateFetchFailed:
		return "fetch-failed"
	case stateNonHTML:
		return "non-html"
	default:
		return "unknown"
	}
}

// outcome is the terminal state of one dispatched URL.
type outcome struct {
	url   string
	state pageState
	path  string
	links []string
	err   error
}

// frontier owns the BFS state. Every method takes the lock; dispatch and
// record happen under the same critical section so a URL is marked visited
// before its fetch begins.
type frontier struct {
	mu          sync.Mutex
	visited     map[string]struct{}
	pending     []string
	inFlight    int
	maxPages    int
	concurrency int
	result      Result
}

func newFrontier(maxPages, concurrency int) *frontier {
	return &frontier{
		visited:     map[string]struct{}{},
		maxPages:    maxPages,
		concurrency: concurrency,
		result:      Result{Files: []string{}, Failed: []string{}},
	}
}

// start queues the seeds and returns the first batch to dispatch.
func (f *frontier) start(seeds []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, seeds...)
	return f.dispatchLocked()
}

// record absorbs a finished URL and returns the next batch to dispatch.
func (f *frontier) record(o outcome) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight--
	switch o.state {
	case stateCacheHit:
		f.result.CacheHits++
		f.result.Files = append(f.result.Files, o.path)
	case stateFetched:
		f.result.Downloads++
		f.result.Files = append(f.result.Files, o.path)
	case stateFetchFailed:
		f.result.Failed = append(f.result.Failed, o.url)
	}
	for _, link := range o.links {
		if _, ok := f.visited[link]; !ok {
			f.pending = append(f.pending, link)
		}
	}
	return f.dispatchLocked()
}

func (f *frontier) dispatchLocked() []string {
	batch := []string{}
	for len(f.pending) > 0 && f.inFlight < f.concurrency && len(f.visited) < f.maxPages {
		next := f.pending[0]
		f.pending = f.pending[1:]
		if _, ok := f.visited[next]; ok {
			continue
		}
		f.visited[next] = struct{}{}
		f.inFlight++
		batch = append(batch, next)
	}
	return batch
}

func (f *frontier) busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight > 0
}

func (f *frontier) snapshot() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Result{
		Files:     append([]string{}, f.result.Files...),
		CacheHits: f.result.CacheHits,
		Downloads: f.result.Downloads,
		Failed:    append([]string{}, f.result.Failed...),
	}
}
