// Package pool implements a fixed-block freelist with a configurable
// ceiling, in the spirit of the buffer-reuse pool cc-backend's
// memorystore keeps for its own fixed-size allocations, but with a hard
// cap: once the ceiling is reached, Get blocks (or returns false under
// TryGet) rather than growing without bound.
package pool

import "sync"

// Pool hands out fixed-size []byte blocks, up to a configurable total.
// Unlike sync.Pool, a Pool never silently discards blocks under memory
// pressure and never exceeds its ceiling. Its user in this module is
// ipfixcodec.Stream, which keeps one Pool of record-body buffers per
// record width.
type Pool struct {
	blockSize int

	mu        sync.Mutex
	cond      *sync.Cond
	free      [][]byte
	allocated int
	ceiling   int
}

// New creates a Pool of blocks sized blockSize, never allocating more
// than ceiling blocks concurrently. A ceiling of zero means unbounded.
func New(blockSize, ceiling int) *Pool {
	p := &Pool{blockSize: blockSize, ceiling: ceiling}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// BlockSize returns the fixed size of blocks this pool hands out.
func (p *Pool) BlockSize() int { return p.blockSize }

// Get returns a block, blocking until one is available if the pool is at
// its ceiling.
func (p *Pool) Get() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if b, ok := p.takeFreeLocked(); ok {
			return b
		}
		if p.ceiling == 0 || p.allocated < p.ceiling {
			p.allocated++
			return make([]byte, p.blockSize)
		}
		p.cond.Wait()
	}
}

// TryGet returns a block without blocking, reporting false if the pool
// is at its ceiling and has nothing free.
func (p *Pool) TryGet() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.takeFreeLocked(); ok {
		return b, true
	}
	if p.ceiling == 0 || p.allocated < p.ceiling {
		p.allocated++
		return make([]byte, p.blockSize), true
	}
	return nil, false
}

func (p *Pool) takeFreeLocked() ([]byte, bool) {
	if len(p.free) == 0 {
		return nil, false
	}
	n := len(p.free) - 1
	b := p.free[n]
	p.free = p.free[:n]
	return b, true
}

// Put returns a block to the pool for reuse. The block's length is reset
// to the pool's block size; callers must not retain a reference to it
// afterward.
func (p *Pool) Put(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, b[:cap(b)][:p.blockSize])
	p.cond.Signal()
}

// Allocated reports how many blocks this pool has allocated from the
// heap so far (checked out or free-for-reuse).
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Ceiling returns the pool's configured block ceiling, or zero if
// unbounded.
func (p *Pool) Ceiling() int {
	return p.ceiling
}
