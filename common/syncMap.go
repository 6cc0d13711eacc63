package common

import "sync"

type SyncMap struct {
	lock sync.RWMutex
	m    map[string]string
}

// NewSyncMap returns a SyncMap ready to use; the zero value's nil backing
// map would panic the first time Set is called.
func NewSyncMap() *SyncMap {
	return &SyncMap{m: make(map[string]string)}
}

func (sm *SyncMap) Set(key string, value string) {
	sm.lock.Lock()
	sm.m[key] = value
	sm.lock.Unlock()
}
func (sm *SyncMap) Get(key string) (value string, ok bool) {
	sm.lock.RLock()
	value, ok = sm.m[key]
	sm.lock.RUnlock()
	return
}
func (sm *SyncMap) Delete(key string) {
	sm.lock.Lock()
	delete(sm.m, key)
	sm.lock.Unlock()
}

func (sm *SyncMap) Iterate(readonly bool, f func(k string, v string)) {
	locker := sync.Locker(&sm.lock)
	if readonly {
		locker = sm.lock.RLocker()
	}
	locker.Lock()
	for k, v := range sm.m {
		f(k, v)
	}
	locker.Unlock()
}
