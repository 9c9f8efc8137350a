package source

import (
	"slices"
	"sync"

	"golang.org/x/text/unicode/norm"
)

type StringID uint32

const NoStringID StringID = 0

// Interner maps identifiers to dense ids. Names are NFC-normalised before
// lookup so that two spellings of the same identifier resolve to one binding.
// Safe for concurrent use.
type Interner struct {
	mu    sync.RWMutex
	byID  []string // byID[0] = "" for NoStringID
	index map[string]StringID
}

func NewInterner() *Interner {
	return &Interner{
		byID:  []string{""},
		index: map[string]StringID{"": NoStringID},
	}
}

// NewInternerFrom rebuilds an interner from a snapshot taken with Snapshot.
// Ids are preserved; strings[0] must be empty.
func NewInternerFrom(strings []string) *Interner {
	in := NewInterner()
	for i, s := range strings {
		if i == 0 {
			continue
		}
		in.byID = append(in.byID, s)
		if _, dup := in.index[s]; !dup {
			in.index[s] = StringID(i)
		}
	}
	return in
}

// Intern returns the id of s, adding it if needed.
func (i *Interner) Intern(s string) StringID {
	s = norm.NFC.String(s)
	i.mu.RLock()
	id, ok := i.index[s]
	i.mu.RUnlock()
	if ok {
		return id
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if id, ok := i.index[s]; ok {
		return id
	}
	// own copy, the caller's buffer may be reused
	cpy := string([]byte(s))
	id = StringID(len(i.byID))
	i.byID = append(i.byID, cpy)
	i.index[cpy] = id
	return id
}

// Find returns the id of s without inserting it.
func (i *Interner) Find(s string) (StringID, bool) {
	s = norm.NFC.String(s)
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := i.index[s]
	return id, ok
}

// Lookup returns the string for id, or "" and false if id is unknown.
func (i *Interner) Lookup(id StringID) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if int(id) >= len(i.byID) {
		return "", false
	}
	return i.byID[id], true
}

// MustLookup panics on unknown ids.
func (i *Interner) MustLookup(id StringID) string {
	s, ok := i.Lookup(id)
	if !ok {
		panic("invalid string ID")
	}
	return s
}

// Len counts NoStringID as well, so it is never below 1.
func (i *Interner) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byID)
}

// Snapshot returns a copy of all strings, indexed by id.
func (i *Interner) Snapshot() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.byID)
}
