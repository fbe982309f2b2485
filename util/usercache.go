package util

import (
	"container/list"
	"sync"
)

// LRU cache for username -> display name
type userEntry struct {
	username    string
	displayName string
}

type userLRU struct {
	mu       sync.Mutex
	ll       *list.List
	cache    map[string]*list.Element
	capacity int
}

var userCache *userLRU

// InitDisplayNameCache initializes the LRU cache with given capacity.
// If capacity <= 0, a default of 1000 is used.
func InitDisplayNameCache(capacity int) {
	if capacity <= 0 {
		capacity = 1000
	}
	userCache = &userLRU{
		ll:       list.New(),
		cache:    make(map[string]*list.Element),
		capacity: capacity,
	}
}

// DisplayNameCacheGet returns the display name and true if present in cache.
func DisplayNameCacheGet(username string) (string, bool) {
	if userCache == nil {
		return "", false
	}
	userCache.mu.Lock()
	defer userCache.mu.Unlock()
	if ele, ok := userCache.cache[username]; ok {
		userCache.ll.MoveToFront(ele)
		if e, ok := ele.Value.(userEntry); ok {
			return e.displayName, true
		}
	}
	return "", false
}

// DisplayNameCacheSet sets the display name for username in the cache.
func DisplayNameCacheSet(username, displayName string) {
	if userCache == nil {
		return
	}
	userCache.mu.Lock()
	defer userCache.mu.Unlock()
	if ele, ok := userCache.cache[username]; ok {
		userCache.ll.MoveToFront(ele)
		ele.Value = userEntry{username: username, displayName: displayName}
		return
	}
	ele := userCache.ll.PushFront(userEntry{username: username, displayName: displayName})
	userCache.cache[username] = ele
	if userCache.ll.Len() > userCache.capacity {
		// evict least recently used
		tail := userCache.ll.Back()
		if tail != nil {
			if e, ok := tail.Value.(userEntry); ok {
				delete(userCache.cache, e.username)
			}
			userCache.ll.Remove(tail)
		}
	}
}

// GetDisplayName returns the display name for username using the cache,
// falling back to load. Usernames without a display name resolve to
// themselves. A load error is not cached.
func GetDisplayName(username string, load func(username string) (string, error)) string {
	if username == "" {
		return ""
	}
	if name, ok := DisplayNameCacheGet(username); ok {
		return name
	}
	if load == nil {
		return username
	}
	name, err := load(username)
	if err != nil {
		return username
	}
	if name == "" {
		name = username
	}
	DisplayNameCacheSet(username, name)
	return name
}
