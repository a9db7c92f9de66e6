package box

import (
	"sync"

	"github.com/google/uuid"
)

// boxLocks serializes read-modify-write cycles per box within the process.
type boxLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*boxLock
}

type boxLock struct {
	mu   sync.Mutex
	refs int
}

func newBoxLocks() *boxLocks {
	return &boxLocks{locks: make(map[uuid.UUID]*boxLock)}
}

// lock blocks until the caller owns id and returns the release func.
func (l *boxLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	bl, ok := l.locks[id]
	if !ok {
		bl = &boxLock{}
		l.locks[id] = bl
	}
	bl.refs++
	l.mu.Unlock()

	bl.mu.Lock()
	return func() {
		bl.mu.Unlock()

		l.mu.Lock()
		bl.refs--
		if bl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
