package view

// Item is a record held in view state.
type Item interface {
	// Key is the record identity; provisional records carry a placeholder.
	Key() string
	AuthorID() string
	// Body is the payload compared when correlating provisional records.
	Body() string
	// Token is the client correlation token echoed back by the server, if any.
	Token() string
}

type entry[T Item] struct {
	item        T
	provisional bool
}

// List is the ordered local state of one view. It is not safe for concurrent
// use; the owning View serializes access.
type List[T Item] struct {
	entries []entry[T]
}

func (l *List[T]) Len() int { return len(l.entries) }

// Items returns a snapshot in display order.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.item
	}
	return out
}

// Provisional reports whether the entry at i is still awaiting confirmation.
func (l *List[T]) Provisional(i int) bool {
	return l.entries[i].provisional
}

// Append adds item at the end.
func (l *List[T]) Append(item T, provisional bool) {
	l.entries = append(l.entries, entry[T]{item: item, provisional: provisional})
}

// ReplaceAt swaps the entry at i for an authoritative item, keeping its position.
func (l *List[T]) ReplaceAt(i int, item T) {
	l.entries[i] = entry[T]{item: item}
}

// RemoveAt deletes the entry at i.
func (l *List[T]) RemoveAt(i int) {
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
}

// RemoveKey deletes the entry with key and reports whether one existed.
func (l *List[T]) RemoveKey(key string) bool {
	i := l.IndexOfKey(key)
	if i < 0 {
		return false
	}
	l.RemoveAt(i)
	return true
}

// IndexOfKey returns the position of the entry with key, or -1.
func (l *List[T]) IndexOfKey(key string) int {
	for i, e := range l.entries {
		if e.item.Key() == key {
			return i
		}
	}
	return -1
}

// IndexOfProvisional finds the first provisional entry matching a confirmed
// record. A non-empty token only matches the same token or an untokened entry
// with equal body; an empty token falls back to body equality.
func (l *List[T]) IndexOfProvisional(token, body string) int {
	if token != "" {
		for i, e := range l.entries {
			if e.provisional && e.item.Token() == token {
				return i
			}
		}
		for i, e := range l.entries {
			if e.provisional && e.item.Token() == "" && e.item.Body() == body {
				return i
			}
		}
		return -1
	}
	for i, e := range l.entries {
		if e.provisional && e.item.Body() == body {
			return i
		}
	}
	return -1
}

// Reset replaces the contents with authoritative items.
func (l *List[T]) Reset(items []T) {
	l.entries = l.entries[:0]
	for _, it := range items {
		l.entries = append(l.entries, entry[T]{item: it})
	}
}

// provisionals returns the unconfirmed entries in order.
func (l *List[T]) provisionals() []entry[T] {
	var out []entry[T]
	for _, e := range l.entries {
		if e.provisional {
			out = append(out, e)
		}
	}
	return out
}
