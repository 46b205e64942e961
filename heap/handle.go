package heap

import (
	"github.com/pkg/errors"
)

// RefKind distinguishes the reference semantics a handle carries
type RefKind uint32

const (
	// RefStrong handles keep their target alive across collections and are
	// retargeted to the object's new location when it moves
	RefStrong RefKind = iota
	// RefWeak is reserved; weak handles are not implemented
	RefWeak
)

var refKindMapping = map[RefKind]string{
	RefStrong: "RefStrong",
	RefWeak:   "RefWeak",
}

func (k RefKind) String() string {
	return refKindMapping[k]
}

const refAbsent uint32 = 0

// Ref is the type-erased core of a managed handle: one word naming either nothing
// or an object in the heap buffer, stored as the object's header offset plus one
// so the zero value is nil. Handles embedded in heap objects are plain Handle
// values discovered through their type's VisitPointers callback; handles held
// outside the heap must be registered roots, which Allocate and Clone arrange.
type Ref struct {
	addr uint32
}

// IsNil returns true if the handle does not name an object
func (r *Ref) IsNil() bool {
	return r.addr == refAbsent
}

// Kind returns the reference semantics of this handle. Only strong handles exist.
func (r *Ref) Kind() RefKind {
	return RefStrong
}

func (r *Ref) objectOffset() int {
	if r.addr == refAbsent {
		panic(errors.New("attempted to use a nil handle"))
	}

	return decodeOffset(r.addr)
}

// Handle is a managed pointer to a heap object of type T. Its raw address is
// updated in place whenever a collection moves the target, so it either is nil or
// names a live object.
type Handle[T any] struct {
	Ref
}

// Value returns the object's current raw pointer without pinning, or nil for a
// nil handle. The pointer is invalidated by the next collection unless the
// object is pinned.
func (h *Handle[T]) Value() *T {
	if h.addr == refAbsent {
		return nil
	}

	return (*T)(Instance().objectData(decodeOffset(h.addr)))
}

// Release unregisters this root handle. Roots must be released in the reverse of
// their registration order; violating that order panics.
func (h *Handle[T]) Release() {
	Instance().releaseRoot(&h.Ref)
}

// Clone registers and returns a fresh root handle naming the same object. Use it
// to root a handle read out of a heap object before the enclosing object can
// become unreachable.
func (h *Handle[T]) Clone() *Handle[T] {
	info, err := TypeInfoFor[T]()
	if err != nil {
		panic(err)
	}

	clone := &Handle[T]{Ref: h.Ref}
	Instance().registerRoot(&clone.Ref, info)
	return clone
}

func (h *Heap) registerRoot(ref *Ref, info *TypeInfo) {
	if h.rootCount == MaxRootCount {
		panic(errors.Errorf("root registry overflow: %d handles are already registered", MaxRootCount))
	}

	h.roots[h.rootCount] = rootEntry{ref: ref, info: info}
	h.rootCount++
}

func (h *Heap) releaseRoot(ref *Ref) {
	if h.rootCount == 0 {
		panic(errors.New("root registry underflow: no root handles are registered"))
	}

	top := h.roots[h.rootCount-1]
	if top.ref != ref {
		panic(errors.New("root handles must be released in strict LIFO order"))
	}

	h.roots[h.rootCount-1] = rootEntry{}
	h.rootCount--
}
