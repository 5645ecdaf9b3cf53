package waitlist

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Registry is the in-memory waitlist: pending member id to display name.
//
// Every operation runs under a single mutex. If a critical section panics the
// registry is poisoned and all later calls fail with ErrRegistryUnavailable
// until the next Replace. The poisoned mapping is never read again.
type Registry struct {
	mu       sync.Mutex
	entries  map[MemberID]entry
	seq      uint64
	poisoned bool
}

type entry struct {
	name string
	seq  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[MemberID]entry)}
}

// locked runs fn while holding r.mu. A panic inside fn poisons the registry
// and is reported as ErrRegistryUnavailable instead of propagating.
func (r *Registry) locked(fn func()) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned {
		return ErrRegistryUnavailable
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.poisoned = true
			err = fmt.Errorf("%w: critical section failed: %v", ErrRegistryUnavailable, rec)
		}
	}()

	fn()
	return nil
}

// Insert adds or renames a pending member. A re-inserted id keeps its
// original position in snapshots.
func (r *Registry) Insert(id MemberID, displayName string) error {
	return r.locked(func() {
		if e, ok := r.entries[id]; ok {
			e.name = displayName
			r.entries[id] = e
			return
		}
		r.seq++
		r.entries[id] = entry{name: displayName, seq: r.seq}
	})
}

// Remove deletes id and reports whether it was present.
func (r *Registry) Remove(id MemberID) (bool, error) {
	var removed bool
	err := r.locked(func() {
		if _, ok := r.entries[id]; ok {
			delete(r.entries, id)
			removed = true
		}
	})
	return removed, err
}

// Contains reports whether id is pending.
func (r *Registry) Contains(id MemberID) (bool, error) {
	var ok bool
	err := r.locked(func() {
		_, ok = r.entries[id]
	})
	return ok, err
}

// Len returns the number of pending members.
func (r *Registry) Len() (int, error) {
	var n int
	err := r.locked(func() {
		n = len(r.entries)
	})
	return n, err
}

// Snapshot returns a copy of the pending members in insertion order.
func (r *Registry) Snapshot() ([]PendingMember, error) {
	type row struct {
		member PendingMember
		seq    uint64
	}
	var rows []row
	err := r.locked(func() {
		rows = make([]row, 0, len(r.entries))
		for id, e := range r.entries {
			rows = append(rows, row{member: PendingMember{ID: id, DisplayName: e.name}, seq: e.seq})
		}
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(a.seq, b.seq) })

	members := make([]PendingMember, len(rows))
	for i, rw := range rows {
		members[i] = rw.member
	}
	return members, nil
}

// Replace discards the current mapping, including a poisoned one, and installs
// members as the new contents. It is the full-resync path.
func (r *Registry) Replace(members []PendingMember) error {
	entries := make(map[MemberID]entry, len(members))
	var seq uint64
	for _, m := range members {
		if _, dup := entries[m.ID]; dup {
			continue
		}
		seq++
		entries[m.ID] = entry{name: m.DisplayName, seq: seq}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
	r.seq = seq
	r.poisoned = false
	return nil
}
