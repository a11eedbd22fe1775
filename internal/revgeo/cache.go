package revgeo

import (
	"container/list"
	"sync"

	"github.com/paulmach/orb"

	"regiokaart/internal/shapes"
)

// memoKey：边界集合不可变，同一集合与同一坐标总是命中同一边界
type memoKey struct {
	set *shapes.Set
	pt  orb.Point
}

// LRU：按坐标缓存命中的边界下标
// 约束：-1 表示未命中任何边界，同样缓存
type LRU struct {
	mu   sync.Mutex
	cap  int
	lst  *list.List
	dict map[memoKey]*list.Element
}

type kv struct {
	k memoKey
	v int
}

func NewLRU(capacity int) *LRU {
	return &LRU{cap: capacity, lst: list.New(), dict: make(map[memoKey]*list.Element)}
}

func (c *LRU) Get(k memoKey) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		c.lst.MoveToFront(e)
		return e.Value.(kv).v, true
	}
	return 0, false
}

func (c *LRU) Set(k memoKey, v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = kv{k: k, v: v}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(kv{k: k, v: v})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(kv).k)
		c.lst.Remove(back)
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
