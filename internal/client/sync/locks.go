package sync

import stdsync "sync"

// pathLocks serializes operations per relative path. Concurrent work on
// distinct paths proceeds freely; two operations on the same path never
// interleave.
type pathLocks struct {
	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*stdsync.Mutex)}
}

func (p *pathLocks) Lock(relPath string) {
	p.mu.Lock()
	lock, ok := p.locks[relPath]
	if !ok {
		lock = &stdsync.Mutex{}
		p.locks[relPath] = lock
	}
	p.mu.Unlock()
	lock.Lock()
}

func (p *pathLocks) Unlock(relPath string) {
	p.mu.Lock()
	lock := p.locks[relPath]
	p.mu.Unlock()
	if lock != nil {
		lock.Unlock()
	}
}
