package service

import (
	"sync"

	"github.com/google/uuid"
)

// caseLocks мьютекс на каждое дело. Удерживается от записи до публикации события,
// поэтому события одного дела уходят в порядке версий.
type caseLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*caseLock
}

type caseLock struct {
	mu   sync.Mutex
	refs int
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[uuid.UUID]*caseLock)}
}

// Lock захватывает блокировку дела и возвращает функцию освобождения.
func (l *caseLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &caseLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
