// Package arena provides a small bump-pointer arena used to own
// long-lived, append-only compiler data: type layouts keyed by canonical
// name, and the statement/block storage of a MIR function body.
//
// It is modeled on the teacher's internal/arena package (a raw-byte bump
// allocator backing hyperpb's relocatable type tables), but adapted away
// from hyperpb's unsafe, pointer-relocation design: this compiler never
// serializes its IR into a flat byte buffer for a different process to
// map in, so a generic, GC-friendly slice-backed arena is enough. What
// survives from the teacher is the shape of the contract — monotonic
// allocation, O(1) amortized Alloc, and Reset for reuse across modules.
package arena

// Arena is a bump allocator for values of type T. A zero Arena is empty
// and ready to use.
type Arena[T any] struct {
	chunks [][]T
	cur    []T
}

const minChunk = 64

// New returns an empty arena.
func New[T any]() *Arena[T] { return &Arena[T]{} }

// Alloc returns a pointer to a fresh, zeroed T owned by the arena.
func (a *Arena[T]) Alloc() *T {
	if len(a.cur) == cap(a.cur) {
		if cap(a.cur) > 0 {
			a.chunks = append(a.chunks, a.cur)
		}
		a.cur = make([]T, 0, max(minChunk, cap(a.cur)*2))
	}
	a.cur = a.cur[:len(a.cur)+1]
	return &a.cur[len(a.cur)-1]
}

// AllocMany returns a slice of n fresh, zeroed Ts, contiguous in memory.
func (a *Arena[T]) AllocMany(n int) []T {
	size := max(minChunk, n)
	chunk := make([]T, n, size)
	a.chunks = append(a.chunks, chunk)
	return chunk
}

// Len returns the total number of values allocated from this arena across
// its lifetime.
func (a *Arena[T]) Len() int {
	n := len(a.cur)
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}

// Reset discards all allocations, allowing the backing memory to be
// reused by a subsequent lowering pass. Per spec §5, the const evaluator's
// memoisation cache (and, by extension, arenas like this one) are rebuilt
// per module rather than shared across modules.
func (a *Arena[T]) Reset() {
	a.chunks = a.chunks[:0]
	a.cur = nil
}

// Interner deduplicates values of type V by a string key (typically a
// canonical name), arena-backing the values themselves so callers can
// hold stable pointers into it for the lifetime of the lowering pass. This
// is the "layouts in an arena indexed by canonical name" design from
// spec §9.
type Interner[V any] struct {
	arena *Arena[V]
	index map[string]*V
}

// NewInterner constructs an empty Interner.
func NewInterner[V any]() *Interner[V] {
	return &Interner[V]{arena: New[V](), index: make(map[string]*V)}
}

// GetOrInsert returns the existing value for key, or allocates and
// registers a fresh zero value via init if key is new.
func (in *Interner[V]) GetOrInsert(key string, init func(*V)) *V {
	if v, ok := in.index[key]; ok {
		return v
	}
	v := in.arena.Alloc()
	if init != nil {
		init(v)
	}
	in.index[key] = v
	return v
}

// Lookup returns the value for key, if present.
func (in *Interner[V]) Lookup(key string) (*V, bool) {
	v, ok := in.index[key]
	return v, ok
}

// Keys returns every registered key, in unspecified order.
func (in *Interner[V]) Keys() []string {
	keys := make([]string, 0, len(in.index))
	for k := range in.index {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of interned values.
func (in *Interner[V]) Len() int { return len(in.index) }
