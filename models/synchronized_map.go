package models

import (
	"sync"
)

// SynchronizedMap is a map structure that can be shared
// across go routines. Workers use it to remember which keys
// they are processing right now, so that a message delivered
// twice to the same process is not worked twice at once.
type SynchronizedMap struct {
	data  map[string]string
	mutex *sync.RWMutex
}

// Creates a new empty SynchronizedMap
func NewSynchronizedMap() *SynchronizedMap {
	return &SynchronizedMap{
		data:  make(map[string]string),
		mutex: &sync.RWMutex{},
	}
}

// Returns true if the key exists in the map.
func (syncMap *SynchronizedMap) HasKey(key string) bool {
	syncMap.mutex.RLock()
	defer syncMap.mutex.RUnlock()
	_, hasKey := syncMap.data[key]
	return hasKey
}

// AddIfAbsent adds the key/value pair and returns true, unless
// the key is already present, in which case it returns false and
// leaves the existing value alone. The check and the add happen
// under one lock.
func (syncMap *SynchronizedMap) AddIfAbsent(key, value string) bool {
	syncMap.mutex.Lock()
	defer syncMap.mutex.Unlock()
	if _, hasKey := syncMap.data[key]; hasKey {
		return false
	}
	syncMap.data[key] = value
	return true
}

// Returns the value of key from the map.
func (syncMap *SynchronizedMap) Get(key string) string {
	syncMap.mutex.RLock()
	defer syncMap.mutex.RUnlock()
	return syncMap.data[key]
}

// Deletes the specified key from the map.
func (syncMap *SynchronizedMap) Delete(key string) {
	syncMap.mutex.Lock()
	delete(syncMap.data, key)
	syncMap.mutex.Unlock()
}

// Len returns the number of keys in the map.
func (syncMap *SynchronizedMap) Len() int {
	syncMap.mutex.RLock()
	defer syncMap.mutex.RUnlock()
	return len(syncMap.data)
}
