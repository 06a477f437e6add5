package pool

import (
	"errors"
	"strings"
)

var ErrEmptyName = errors.New("entry name is empty")

// Entry is one named participant and how often it has been drawn.
type Entry struct {
	Name    string
	Counter int
}

// Pool is the ordered set of entries. Identity is positional: index i
// refers to the same entry for the lifetime of the pool.
type Pool struct {
	entries []Entry
}

// New builds a pool from entries in load order.
// Names are trimmed; an empty name (or a spreadsheet placeholder such as
// "nan") is rejected. Counters are normalized so the minimum is 0, which
// also lifts negative counters read from hand-edited files.
func New(entries []Entry) (*Pool, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if IsBlankName(name) {
			return nil, ErrEmptyName
		}
		out = append(out, Entry{Name: name, Counter: e.Counter})
	}
	p := &Pool{entries: out}
	p.Normalize()
	return p, nil
}

// IsBlankName reports whether a trimmed name carries no participant.
// "nan" and "None" are what spreadsheet exports write for empty cells.
func IsBlankName(name string) bool {
	switch name {
	case "", "nan", "None":
		return true
	}
	return false
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

func (p *Pool) Empty() bool { return p.Len() == 0 }

// Entry returns the entry at i. It panics on an out-of-range index.
func (p *Pool) Entry(i int) Entry {
	return p.entries[i]
}

func (p *Pool) Name(i int) string {
	return p.entries[i].Name
}

// Valid reports whether i addresses an entry.
func (p *Pool) Valid(i int) bool {
	return i >= 0 && i < p.Len()
}

// Entries returns a copy of all entries in order.
func (p *Pool) Entries() []Entry {
	if p == nil {
		return nil
	}
	return append([]Entry(nil), p.entries...)
}

// Clone returns an independent copy.
func (p *Pool) Clone() *Pool {
	return &Pool{entries: p.Entries()}
}

// Increment adds one draw to the entry at i.
func (p *Pool) Increment(i int) {
	p.entries[i].Counter++
}
