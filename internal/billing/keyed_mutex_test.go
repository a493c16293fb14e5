package billing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cardbill/internal/core"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	key := core.InvoiceKey{Month: core.NewMonth(2024, 3), CardID: 1}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(key)
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			km.Unlock(key)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, km.Len(), "entries are released when unused")
}

func TestKeyedMutexLockAllOverlappingSetsDoNotDeadlock(t *testing.T) {
	km := NewKeyedMutex()
	m := core.NewMonth(2024, 1)
	a := []core.InvoiceKey{{Month: m, CardID: 1}, {Month: m.AddMonths(1), CardID: 1}, {Month: m, CardID: 1}}
	b := []core.InvoiceKey{{Month: m.AddMonths(1), CardID: 1}, {Month: m, CardID: 1}}

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); unlock := km.LockAll(a); unlock() }()
			go func() { defer wg.Done(); unlock := km.LockAll(b); unlock() }()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutexUnlockUnknownPanics(t *testing.T) {
	km := NewKeyedMutex()
	assert.Panics(t, func() { km.Unlock(core.InvoiceKey{CardID: 1}) })
}
