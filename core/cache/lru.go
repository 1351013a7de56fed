package cache

import (
	"container/list"
	"sync"
)

type LRUOpts struct {
	Size int
}

type entry struct {
	key string
	val any
}

// LRU is a fixed-capacity cache evicting the least recently used entry.
type LRU struct {
	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
	size  int
}

func NewLRU(opts LRUOpts) *LRU {
	if opts.Size <= 0 {
		opts.Size = 128
	}
	return &LRU{
		ll:    list.New(),
		items: make(map[string]*list.Element),
		size:  opts.Size,
	}
}

func (l *LRU) Get(key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ele, ok := l.items[key]
	if !ok {
		return nil, false
	}
	l.ll.MoveToFront(ele)
	return ele.Value.(*entry).val, true
}

func (l *LRU) Put(key string, val any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ele, ok := l.items[key]; ok {
		l.ll.MoveToFront(ele)
		ele.Value.(*entry).val = val
		return
	}

	l.items[key] = l.ll.PushFront(&entry{key: key, val: val})
	if l.ll.Len() > l.size {
		last := l.ll.Back()
		if last != nil {
			l.ll.Remove(last)
			delete(l.items, last.Value.(*entry).key)
		}
	}
}

func (l *LRU) Delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ele, ok := l.items[key]; ok {
		l.ll.Remove(ele)
		delete(l.items, key)
	}
}

var _ Cache = (*LRU)(nil)
