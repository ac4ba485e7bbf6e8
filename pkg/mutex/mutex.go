package mutex

import (
	"strconv"
	"sync"
)

// KeyedMutex serializes work per key without holding a global lock.
type KeyedMutex struct {
	muMap sync.Map
}

func (km *KeyedMutex) Lock(key int64) {
	mu, _ := km.muMap.LoadOrStore(strconv.FormatInt(key, 10), &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
}

func (km *KeyedMutex) Unlock(key int64) {
	mu, ok := km.muMap.Load(strconv.FormatInt(key, 10))
	if ok {
		mu.(*sync.Mutex).Unlock()
	}
}
