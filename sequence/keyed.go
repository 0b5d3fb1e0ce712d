package sequence

import "github.com/suxinde2009/ptsafe/collections"

// Keyed is the keyed-dictionary collaborator safedictionary.Dictionary
// keeps beside its Collection, guarded by the Dictionary's own mutex. It
// wraps collections.OrderedMap so enumeration order (Keys, Values) follows
// insertion order, the same property the teacher's OrderedMap offers for
// JSON-shaped data. Handle traversal (Next/Previous) does not use it: it
// walks the Collection's own Ordered sequence.
type Keyed[K comparable, T any] struct {
	entries collections.OrderedMap[K, T]
}

func NewKeyed[K comparable, T any]() *Keyed[K, T] {
	return &Keyed[K, T]{}
}

func (k *Keyed[K, T]) Get(key K) (T, bool) {
	return k.entries.Get(key)
}

func (k *Keyed[K, T]) Set(key K, v T) {
	k.entries.Set(key, v)
}

func (k *Keyed[K, T]) Delete(key K) {
	k.entries.Delete(key)
}

func (k *Keyed[K, T]) Len() int {
	return k.entries.Len()
}

func (k *Keyed[K, T]) Values() []T {
	return k.entries.Values()
}

func (k *Keyed[K, T]) Keys() []K {
	return k.entries.Keys()
}
