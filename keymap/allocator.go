package keymap

import (
	"sync"

	"github.com/strusgo/indexcore/ids"
)

// CounterStore is the minimal Variable-table access an Allocator needs:
// read and compare-and-swap the named monotonic counter (TermNo, TypeNo,
// DocNo, UserNo, AttribNo) that backs one dictionary's id space.
type CounterStore interface {
	GetCounter(name string) (ids.Index, error)
	CASCounter(name string, old, new ids.Index) (bool, error)
}

// Allocator hands out fresh permanent ids for a dictionary at commit
// time. Implementations must never reuse an id.
type Allocator interface {
	// Allocate reserves n consecutive ids and returns the first one;
	// the caller owns ids [first, first+n).
	Allocate(counterName string, store CounterStore, n int) (first ids.Index, err error)
}

// CounterAllocator is the default strategy: bump the Variable-table
// counter by exactly as many ids as are needed, one commit at a time.
// This is the default strategy (see RangeAllocator below for the
// alternate, opt-in batch-reserving allocator).
type CounterAllocator struct{}

func (CounterAllocator) Allocate(counterName string, store CounterStore, n int) (ids.Index, error) {
	for {
		old, err := store.GetCounter(counterName)
		if err != nil {
			return 0, err
		}
		first := old + 1
		newVal := old + ids.Index(n)
		ok, err := store.CASCounter(counterName, old, newVal)
		if err != nil {
			return 0, err
		}
		if ok {
			return first, nil
		}
	}
}

// RangeAllocator reserves a whole batch of ids from the Variable table
// ahead of actual need and hands them out from an in-process range
// before going back for another batch. This trades a small amount of id
// space (unused ids in a reservation are never returned) for far fewer
// Variable-table writes under bulk load — the historical alternate
// allocator strategy, restored as an explicit opt-in rather than the
// committed default.
type RangeAllocator struct {
	BatchSize int

	mu     sync.Mutex
	ranges map[string][2]ids.Index // counter name -> {next, exclusive upper bound of its reservation}
}

func (r *RangeAllocator) Allocate(counterName string, store CounterStore, n int) (ids.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rg := r.ranges[counterName]
	if rg[0]+ids.Index(n) > rg[1] {
		batch := r.BatchSize
		if batch < n {
			batch = n
		}
		for {
			old, err := store.GetCounter(counterName)
			if err != nil {
				return 0, err
			}
			newVal := old + ids.Index(batch)
			ok, err := store.CASCounter(counterName, old, newVal)
			if err != nil {
				return 0, err
			}
			if ok {
				rg = [2]ids.Index{old + 1, newVal + 1}
				break
			}
		}
	}
	first := rg[0]
	rg[0] += ids.Index(n)
	if r.ranges == nil {
		r.ranges = make(map[string][2]ids.Index)
	}
	r.ranges[counterName] = rg
	return first, nil
}
