package heap

import (
	"github.com/pkg/errors"
)

// Pinned is a scoped immovability token. While it exists, the object's header
// forwards to itself and collections leave the object in place. Value remains a
// valid raw pointer until Unpin.
type Pinned[T any] struct {
	Value *T

	offset int
}

// Unpin releases the token. The object's bytes are not reclaimed immediately;
// the next collection reassimilates them.
func (p Pinned[T]) Unpin() {
	Instance().unpin(p.offset)
}

// Pin marks the target immovable and returns a scoped token carrying a raw
// pointer to it. Pinning an already-pinned object panics; the design has no
// nested pins.
func (h *Handle[T]) Pin() Pinned[T] {
	heap := Instance()
	offset := h.objectOffset()
	heap.pin(offset)

	return Pinned[T]{
		Value:  (*T)(heap.objectData(offset)),
		offset: offset,
	}
}

// Deref pins the object for the duration of the callback. This is the scoped
// dereference: the raw pointer passed to access must not escape it.
func (h *Handle[T]) Deref(access func(obj *T)) {
	pinned := h.Pin()
	defer pinned.Unpin()

	access(pinned.Value)
}

// UnscopedPin is the manual-lifetime variant of Pin. The returned raw pointer is
// valid until UnscopedUnpin.
func (h *Handle[T]) UnscopedPin() *T {
	heap := Instance()
	offset := h.objectOffset()
	heap.pin(offset)
	return (*T)(heap.objectData(offset))
}

// UnscopedUnpin releases a pin taken with UnscopedPin
func (h *Handle[T]) UnscopedUnpin() {
	Instance().unpin(h.objectOffset())
}

// Pin does not write a pin-skip record: either the object was just allocated and
// still lies in the normal allocation flow, or the next collection will observe
// the pinned marker and rebuild the records.
func (h *Heap) pin(offset int) {
	hdr := h.header(offset)
	if hdr.forward != forwardAbsent {
		panic(errors.Errorf("attempted to pin the object at offset %d, but it is already pinned", offset))
	}

	hdr.forward = encodeOffset(offset)
}

func (h *Heap) unpin(offset int) {
	hdr := h.header(offset)
	if !hdr.isPinnedAt(offset) {
		panic(errors.Errorf("attempted to unpin the object at offset %d, but it is not pinned", offset))
	}

	hdr.forward = forwardAbsent
}
