package upstream

import "sync/atomic"

// atomicSnapshot is a small wrapper so HostSet's zero value still has a
// valid, lock-free load/store pair without every call site spelling out
// the generic instantiation.
type atomicSnapshot struct {
	ptr atomic.Pointer[hostSetSnapshot]
}

func (a *atomicSnapshot) load() *hostSetSnapshot {
	s := a.ptr.Load()
	if s == nil {
		return &hostSetSnapshot{fullPerZone: map[string][]*Host{}, healthyPerZone: map[string][]*Host{}}
	}
	return s
}

func (a *atomicSnapshot) store(s *hostSetSnapshot) { a.ptr.Store(s) }
