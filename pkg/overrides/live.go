package overrides

import (
	"sync/atomic"
)

// Live is an override table that can be replaced while readers are counting.
// Readers always see one complete table, never a partially loaded one.
type Live struct {
	t atomic.Pointer[Table]
}

// NewLive returns a Live serving t. A nil t serves an empty table.
func NewLive(t Table) *Live {
	l := &Live{}
	l.Swap(t)
	return l
}

// Lookup implements syllable.Overrides.
func (l *Live) Lookup(word string) (int, bool) {
	return l.Table().Lookup(word)
}

// Table returns the table currently served.
func (l *Live) Table() Table {
	if p := l.t.Load(); p != nil {
		return *p
	}
	return nil
}

// Swap installs t and returns the previous table.
func (l *Live) Swap(t Table) Table {
	if t == nil {
		t = Table{}
	}
	if old := l.t.Swap(&t); old != nil {
		return *old
	}
	return nil
}

// ReloadFile loads path and installs it. On error the current table is kept.
func (l *Live) ReloadFile(path string) (Table, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	l.Swap(t)
	return t, nil
}
