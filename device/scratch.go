package device

import (
	"runtime"
	"sync"
)

// scratchRecord is the per-thread scratch data a CPU target's worker
// acquires before touching the device: its current shader key/local
// registry pointer and a reentrancy depth so nested register/unregister
// calls (§9 "handles are refcounted per thread to allow reentrancy") work.
type scratchRecord struct {
	depth int
}

// scratchPool is the bounded pool of per-thread scratch records CPU
// targets allocate at construction (§4.1: "a pool of per-thread scratch
// records sized max(req_threads, hw_concurrency) + 1 ... one record is
// reserved for the host thread"). GPU targets need no pool since all work
// runs on one implicit stream (§4.1, §5).
//
// Acquisition is a concurrent FIFO queue (§5, §9): a channel used as a
// bounded free-list. goid is simulated with a per-goroutine handle value
// returned by Register, since Go has no public thread-local storage —
// the caller threads the returned handle through instead of relying on
// implicit TLS, which is the idiomatic Go analogue of the original's
// thread-local acquisition.
type scratchPool struct {
	free chan *scratchRecord
	size int

	mu      sync.Mutex
	byToken map[int]*scratchRecord
	nextTok int
}

// newScratchPool builds a pool sized max(requestedThreads, hardware
// concurrency) + 1 for CPU targets, or nil for GPU targets.
func newScratchPool(isGPU bool, requestedThreads uint32) *scratchPool {
	if isGPU {
		return nil
	}
	hw := runtime.NumCPU()
	n := int(requestedThreads)
	if n < hw {
		n = hw
	}
	n++ // host thread reservation

	p := &scratchPool{
		free:    make(chan *scratchRecord, n),
		size:    n,
		byToken: map[int]*scratchRecord{},
	}
	for i := 0; i < n; i++ {
		p.free <- &scratchRecord{}
	}
	return p
}

// Register acquires a scratch slot for the calling goroutine (blocking if
// the pool is exhausted, matching "bounded wait" in §5) and returns an
// opaque token identifying it. Reentrant: registering the same logical
// worker again before unregistering increments a depth counter rather
// than blocking on a second slot — callers achieve this by reusing the
// token they were first handed.
func (p *scratchPool) Register(token int) int {
	if p == nil {
		return token // GPU: no-op, any token is fine
	}
	p.mu.Lock()
	if rec, ok := p.byToken[token]; ok {
		rec.depth++
		p.mu.Unlock()
		return token
	}
	p.mu.Unlock()

	rec := <-p.free
	rec.depth = 1
	p.mu.Lock()
	p.byToken[token] = rec
	p.mu.Unlock()
	return token
}

// Unregister releases one level of reentrancy for token; the underlying
// slot returns to the free queue only once depth reaches zero.
func (p *scratchPool) Unregister(token int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	rec, ok := p.byToken[token]
	if !ok {
		p.mu.Unlock()
		return
	}
	rec.depth--
	done := rec.depth <= 0
	if done {
		delete(p.byToken, token)
	}
	p.mu.Unlock()

	if done {
		p.free <- rec
	}
}

// Size returns the total number of scratch records in the pool.
func (p *scratchPool) Size() int {
	if p == nil {
		return 0
	}
	return p.size
}
