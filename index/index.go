// Package index keeps banned subnets in a randomized binary search tree whose
// nodes live in an arena.
//
// The tree stores no balance data. Deletion merges the two subtrees of the
// removed node, choosing the merged root with a fair coin at every step,
// which keeps the expected height logarithmic. Tree links are arena slot
// indices, so evicting or reusing a slot never leaves a dangling reference
// once the slot has been unlinked.
//
// An Index is not safe for concurrent use.
package index

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/arena"
)

const none int32 = -1

var (
	ErrDuplicateKey = errors.New("ip address already exists")
	ErrNotFound     = errors.New("ip address not found")
)

// Entry is one banned subnet and the name of whoever banned it.
type Entry struct {
	Key  addr.Key
	Name string
}

type node struct {
	key    addr.Key
	name   string
	left   int32
	right  int32
	parent int32
}

// link returns the child link to follow for a key greater (right) or not
// greater than n.key.
func (n *node) link(right bool) *int32 {
	if right {
		return &n.right
	}
	return &n.left
}

type Index struct {
	slots   *arena.Arena[node]
	root    int32
	rng     *rand.Rand
	onEvict func(Entry)
}

type Option func(*Index)

// WithSource sets the random source used by merges. A fixed source makes
// tree shapes reproducible.
func WithSource(src rand.Source) Option {
	return func(ix *Index) {
		ix.rng = rand.New(src)
	}
}

// WithEvictHook registers fn to be called with every entry pushed out of a
// full arena by a new insertion.
func WithEvictHook(fn func(Entry)) Option {
	return func(ix *Index) {
		ix.onEvict = fn
	}
}

// New creates an empty index holding at most capacity entries.
func New(capacity int, opts ...Option) *Index {
	ix := &Index{
		slots: arena.New[node](capacity),
		root:  none,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.rng == nil {
		ix.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return ix
}

// Len returns the number of live entries.
func (ix *Index) Len() int { return ix.slots.Len() }

// Cap returns the maximum number of live entries.
func (ix *Index) Cap() int { return ix.slots.Cap() }

func (ix *Index) node(i int32) *node {
	return ix.slots.At(int(i))
}

func (ix *Index) entry(i int32) Entry {
	n := ix.node(i)
	return Entry{Key: n.key, Name: n.name}
}

func (ix *Index) find(k addr.Key) int32 {
	i := ix.root
	for i != none {
		n := ix.node(i)
		if n.key == k {
			return i
		}
		i = *n.link(k > n.key)
	}
	return none
}

// Insert adds a ban for the subnet raw (see addr.DeriveKey) attributed to
// name. If the arena is full, the oldest entry is evicted first. The
// normalized entry is returned.
func (ix *Index) Insert(raw uint32, name string) (Entry, error) {
	k, err := addr.DeriveKey(raw)
	if err != nil {
		return Entry{}, err
	}
	name, err = addr.NormalizeName(name)
	if err != nil {
		return Entry{}, err
	}
	if ix.find(k) != none {
		return Entry{}, fmt.Errorf("%w: [%s]", ErrDuplicateKey, k)
	}

	// Eviction may restructure the tree, so the insertion point is searched
	// only after the slot is reserved.
	slot := int32(ix.slots.Reserve(ix.evict))

	parent, link := none, &ix.root
	for *link != none {
		parent = *link
		p := ix.node(parent)
		link = p.link(k > p.key)
	}
	*link = slot
	*ix.node(slot) = node{
		key:    k,
		name:   name,
		left:   none,
		right:  none,
		parent: parent,
	}
	return Entry{Key: k, Name: name}, nil
}

// Remove deletes the ban for the subnet raw and returns it.
func (ix *Index) Remove(raw uint32) (Entry, error) {
	k, err := addr.DeriveKey(raw)
	if err != nil {
		return Entry{}, err
	}
	i := ix.find(k)
	if i == none {
		return Entry{}, fmt.Errorf("%w: [%s]", ErrNotFound, k)
	}

	e := ix.entry(i)
	ix.node(i).name = ""
	ix.delete(i)
	ix.slots.Release(int(i))
	return e, nil
}

// Lookup reports whether the subnet raw is banned.
func (ix *Index) Lookup(raw uint32) bool {
	_, ok := ix.Get(raw)
	return ok
}

// Get returns the entry for the subnet raw.
func (ix *Index) Get(raw uint32) (Entry, bool) {
	k, err := addr.DeriveKey(raw)
	if err != nil {
		return Entry{}, false
	}
	i := ix.find(k)
	if i == none {
		return Entry{}, false
	}
	return ix.entry(i), true
}

func (ix *Index) evict(slot int) {
	i := int32(slot)
	e := ix.entry(i)
	ix.delete(i)
	if ix.onEvict != nil {
		ix.onEvict(e)
	}
}

// delete unlinks node i, putting the merge of its subtrees in its place.
func (ix *Index) delete(i int32) {
	n := ix.node(i)
	merged := ix.merge(n.left, n.right)
	if merged != none {
		ix.node(merged).parent = n.parent
	}
	if n.parent == none {
		ix.root = merged
	} else {
		p := ix.node(n.parent)
		*p.link(n.key > p.key) = merged
	}
	n.left, n.right, n.parent = none, none, none
}

// merge joins two subtrees where every key in left is smaller than every
// key in right, and returns the new subtree root.
func (ix *Index) merge(left, right int32) int32 {
	if left == none {
		return right
	}
	if right == none {
		return left
	}

	if ix.rng.Uint64()&1 == 1 {
		l := ix.node(left)
		l.right = ix.merge(l.right, right)
		ix.node(l.right).parent = left
		return left
	}
	r := ix.node(right)
	r.left = ix.merge(left, r.left)
	ix.node(r.left).parent = right
	return right
}

// All yields the entries in ascending key order. The index must not be
// modified while the sequence is being consumed.
func (ix *Index) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := ix.first(ix.root); i != none; i = ix.successor(i) {
			if !yield(ix.entry(i)) {
				return
			}
		}
	}
}

// Logical yields the entries from oldest to newest insertion.
func (ix *Index) Logical() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for slot := range ix.slots.Order() {
			if !yield(ix.entry(int32(slot))) {
				return
			}
		}
	}
}

func (ix *Index) first(i int32) int32 {
	if i == none {
		return none
	}
	for ix.node(i).left != none {
		i = ix.node(i).left
	}
	return i
}

func (ix *Index) successor(i int32) int32 {
	n := ix.node(i)
	if n.right != none {
		return ix.first(n.right)
	}
	for p := n.parent; p != none; i, p = p, ix.node(p).parent {
		if ix.node(p).left == i {
			return p
		}
	}
	return none
}
