package lineitem

import (
	"sync"

	"orderdesk/internal/domain"
)

// List is the editable set of catalog items on an order draft. It holds at
// most one entry per item id; entries are ordered by last addition.
type List struct {
	mu       sync.Mutex
	items    []domain.SelectedItemQuantity
	onChange []func([]domain.SelectedItemQuantity)
}

func New() *List {
	return &List{}
}

// Add puts qty of item on the list. An item already present has qty added to
// its start count and moves to the end.
func (l *List) Add(item domain.CatalogItem, qty int) {
	l.mu.Lock()
	entry := domain.SelectedItemQuantity{Item: item, StartCount: qty}
	if i := l.indexOf(item.ID); i >= 0 {
		entry = l.items[i]
		entry.StartCount += qty
		l.items = append(l.items[:i], l.items[i+1:]...)
	}
	l.items = append(l.items, entry)
	l.mu.Unlock()
	l.changed()
}

// Remove drops the entry for id. Missing ids are ignored.
func (l *List) Remove(id string) {
	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()
	l.changed()
}

// UpdateQuantity overwrites the start count for id and reports whether the
// entry existed.
func (l *List) UpdateQuantity(id string, qty int) bool {
	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	l.items[i].StartCount = qty
	l.mu.Unlock()
	l.changed()
	return true
}

// Reset empties the list.
func (l *List) Reset() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	l.changed()
}

// Items returns a copy of the entries.
func (l *List) Items() []domain.SelectedItemQuantity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// OnChange registers fn to run with the new entries after every mutation.
func (l *List) OnChange(fn func([]domain.SelectedItemQuantity)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

func (l *List) changed() {
	l.mu.Lock()
	items := l.snapshot()
	fns := make([]func([]domain.SelectedItemQuantity), len(l.onChange))
	copy(fns, l.onChange)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(items)
	}
}

func (l *List) indexOf(id string) int {
	for i := range l.items {
		if l.items[i].Item.ID == id {
			return i
		}
	}
	return -1
}

// snapshot copies the entries deeply enough that callers cannot reach the
// counts held by the list.
func (l *List) snapshot() []domain.SelectedItemQuantity {
	out := make([]domain.SelectedItemQuantity, len(l.items))
	for i, it := range l.items {
		it.EndCount = copyInt(it.EndCount)
		it.NetCount = copyInt(it.NetCount)
		out[i] = it
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
