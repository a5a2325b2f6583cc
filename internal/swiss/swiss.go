// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package swiss implements a small open-addressing hash table used
// throughout the compiler for the symbol index and layout table lookups.
//
// It follows the probing scheme of a Swiss table (a control byte per slot,
// linear group probing) without the unsafe SIMD control-byte packing the
// teacher's internal/swiss table uses: the core never needs to lay these
// tables out in a relocatable byte buffer, so a plain Go slice of entries
// is enough.
package swiss

import "fmt"

const (
	empty    = 0x80
	tombsone = 0x81
)

// Entry is a key/value pair for bulk construction with [New].
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// KV constructs a new entry; it exists for type inference at call sites.
func KV[K comparable, V any](k K, v V) Entry[K, V] { return Entry[K, V]{k, v} }

// Table is an insertion-ordered-agnostic open-addressing map from K to V.
//
// The zero Table is empty and ready to use.
type Table[K comparable, V any] struct {
	ctrl    []byte
	slots   []slot[K, V]
	count   int
	hasher  func(K) uint64
}

type slot[K comparable, V any] struct {
	key   K
	value V
}

// New builds a table from a hash function and a set of entries.
func New[K comparable, V any](hasher func(K) uint64, entries ...Entry[K, V]) *Table[K, V] {
	t := &Table[K, V]{hasher: hasher}
	t.grow(max(8, len(entries)*2))
	for _, e := range entries {
		*t.Insert(e.Key) = e.Value
	}
	return t
}

// Len returns the number of live entries.
func (t *Table[K, V]) Len() int { return t.count }

func (t *Table[K, V]) hash(k K) uint64 {
	if t.hasher != nil {
		return t.hasher(k)
	}
	return fnv64(k)
}

func (t *Table[K, V]) grow(newCap int) {
	newCap = nextPow2(newCap)
	old := t.slots
	oldCtrl := t.ctrl

	t.slots = make([]slot[K, V], newCap)
	t.ctrl = make([]byte, newCap)
	for i := range t.ctrl {
		t.ctrl[i] = empty
	}
	t.count = 0

	for i, c := range oldCtrl {
		if c == empty || c == tombsone {
			continue
		}
		*t.Insert(old[i].key) = old[i].value
	}
}

func (t *Table[K, V]) maybeGrow() {
	if len(t.slots) == 0 || t.count*10 >= len(t.slots)*7 {
		t.grow(max(8, len(t.slots)*2))
	}
}

// Insert returns a pointer to the value slot for k, creating it (zeroed)
// if absent. Growing the table invalidates previously returned pointers.
func (t *Table[K, V]) Insert(k K) *V {
	t.maybeGrow()

	h := t.hash(k)
	mask := uint64(len(t.slots) - 1)
	i := h & mask
	firstTomb := -1
	for {
		switch t.ctrl[i] {
		case empty:
			slot := firstTomb
			if slot < 0 {
				slot = int(i)
			}
			t.ctrl[slot] = byte(h) &^ 0x80
			t.slots[slot].key = k
			t.count++
			return &t.slots[slot].value
		case tombsone:
			if firstTomb < 0 {
				firstTomb = int(i)
			}
		default:
			if t.slots[i].key == k {
				return &t.slots[i].value
			}
		}
		i = (i + 1) & mask
	}
}

// Get looks up k, returning its value and whether it was present.
func (t *Table[K, V]) Get(k K) (V, bool) {
	if len(t.slots) == 0 {
		var zero V
		return zero, false
	}
	h := t.hash(k)
	mask := uint64(len(t.slots) - 1)
	i := h & mask
	for {
		switch t.ctrl[i] {
		case empty:
			var zero V
			return zero, false
		case tombsone:
			// keep probing
		default:
			if t.slots[i].key == k {
				return t.slots[i].value, true
			}
		}
		i = (i + 1) & mask
	}
}

// Delete removes k from the table, if present.
func (t *Table[K, V]) Delete(k K) {
	if len(t.slots) == 0 {
		return
	}
	h := t.hash(k)
	mask := uint64(len(t.slots) - 1)
	i := h & mask
	for {
		switch t.ctrl[i] {
		case empty:
			return
		case tombsone:
		default:
			if t.slots[i].key == k {
				t.ctrl[i] = tombsone
				var zero slot[K, V]
				t.slots[i] = zero
				t.count--
				return
			}
		}
		i = (i + 1) & mask
	}
}

// Range calls f for every live entry, in unspecified order. Stops early if
// f returns false.
func (t *Table[K, V]) Range(f func(K, V) bool) {
	for i, c := range t.ctrl {
		if c == empty || c == tombsone {
			continue
		}
		if !f(t.slots[i].key, t.slots[i].value) {
			return
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func fnv64(v any) uint64 {
	s, ok := v.(string)
	if !ok {
		// Fall back to a stable hash of the %v formatting; good enough for
		// the small, non-hot-path tables this package backs in the core.
		s = stringify(v)
	}
	const (
		offset = 1469598103934665603
		prime  = 1099511628211
	)
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}

func stringify(v any) string { return fmt.Sprintf("%v", v) }
