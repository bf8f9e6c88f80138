package dispatch

import (
	"sync"
	"testing"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	locks := newKeyedLocks()

	const workers = 20
	var counter, max int
	var track sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.lock("call-1")
			defer release()

			track.Lock()
			counter++
			if counter > max {
				max = counter
			}
			track.Unlock()

			track.Lock()
			counter--
			track.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", max)
	}
}

func TestKeyedLocksReleaseEntries(t *testing.T) {
	locks := newKeyedLocks()

	release := locks.lock("call-1")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.entries) != 0 {
		t.Fatalf("entries = %d, want 0 after release", len(locks.entries))
	}
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()

	releaseA := locks.lock("call-a")
	done := make(chan struct{})
	go func() {
		releaseB := locks.lock("call-b")
		releaseB()
		close(done)
	}()
	<-done
	releaseA()
}
