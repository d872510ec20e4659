package local

import (
	"sync"

	"github.com/matchnote/matchnote/pkg/models"
)

// recordLocks hands out one mutex per record. Entries are dropped once no
// goroutine holds or waits for them.
type recordLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{entries: make(map[string]*lockEntry)}
}

func (l *recordLocks) lock(kind models.Kind, id string) (unlock func()) {
	key := string(kind) + "/" + id

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

func (l *recordLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
