package billing

import (
	"sort"
	"sync"

	"cardbill/internal/core"
)

// KeyedMutex serializes work per invoice key. Entries are reference counted
// and dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[core.InvoiceKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[core.InvoiceKey]*keyLock)}
}

func (k *KeyedMutex) Lock(key core.InvoiceKey) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

func (k *KeyedMutex) Unlock(key core.InvoiceKey) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("billing: unlock of unlocked invoice key " + key.String())
	}
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}

// LockAll locks every distinct key in a fixed order so that two callers with
// overlapping key sets cannot deadlock. The returned func releases them.
func (k *KeyedMutex) LockAll(keys []core.InvoiceKey) (unlock func()) {
	sorted := uniqueSorted(keys)
	for _, key := range sorted {
		k.Lock(key)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			k.Unlock(sorted[i])
		}
	}
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func uniqueSorted(keys []core.InvoiceKey) []core.InvoiceKey {
	seen := make(map[core.InvoiceKey]struct{}, len(keys))
	out := make([]core.InvoiceKey, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CardID != out[j].CardID {
			return out[i].CardID < out[j].CardID
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out
}
