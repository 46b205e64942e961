package heap

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/verdantvm/gcutils"
)

// Allocate constructs a zero-valued managed T in from-space and returns a rooted
// handle to it. T must have been registered with RegisterType. Returns
// gcutils.OutOfMemoryError (wrapped) when the object does not fit even after a
// collection.
func Allocate[T any]() (*Handle[T], error) {
	return AllocateWith[T](nil)
}

// AllocateWith is Allocate with an in-place initializer. The initializer runs on
// the zeroed payload before the object becomes visible to the collector; if it
// panics, the allocation is rolled back and the heap is left consistent. The
// initializer must not allocate from the heap.
func AllocateWith[T any](init func(obj *T)) (*Handle[T], error) {
	info, err := TypeInfoFor[T]()
	if err != nil {
		return nil, err
	}

	h := Instance()
	var erasedInit func(obj unsafe.Pointer)
	if init != nil {
		erasedInit = func(obj unsafe.Pointer) {
			init((*T)(obj))
		}
	}

	offset, err := h.allocateObject(info, erasedInit)
	if err != nil {
		return nil, err
	}

	handle := &Handle[T]{}
	handle.addr = encodeOffset(offset)
	h.registerRoot(&handle.Ref, info)
	return handle, nil
}

func (h *Heap) allocateObject(info *TypeInfo, init func(obj unsafe.Pointer)) (int, error) {
	gcutils.DebugValidate(h)

	oldAllocOffset := h.allocOffset
	collectionsBefore := h.collectionCount
	oldHeader, err := h.adjustAllocOffset(spaceFrom, collectIfNeeded, info.size)
	if err != nil {
		return 0, cerrors.Wrapf(err, "allocating %d bytes for a %s object", info.size, info.name)
	}

	resultOffset := h.allocOffset
	committed := false
	defer func() {
		// The captured header content goes back where it was captured on a failed
		// construction, or past the finished object otherwise. When fewer bytes than
		// a header remain there, the next allocation is guaranteed to collect first,
		// so the chain content can be dropped.
		restoreOffset := h.allocOffset
		if !committed {
			restoreOffset = resultOffset
			h.allocOffset = resultOffset
			if h.collectionCount == collectionsBefore {
				// The pre-adjust offset only exists in the current from-space when no
				// collection swapped the halves underneath it.
				h.allocOffset = oldAllocOffset
			}
		}

		if restoreOffset-h.fromOffset < halfSize-headerSize {
			*h.header(restoreOffset) = oldHeader
		}
	}()

	h.zeroRange(resultOffset, info.size)
	if init != nil {
		init(h.objectData(resultOffset))
	}

	hdr := h.header(resultOffset)
	hdr.info = info.id
	hdr.forward = forwardAbsent
	h.allocOffset = resultOffset + info.size
	committed = true

	return resultOffset, nil
}

// adjustAllocOffset repositions the allocation offset so that allocatingSize
// bytes fit in the requested half-space, collecting at most once when the policy
// allows it. It returns the header content sitting at the final position, which
// the caller must re-write past its allocation to keep the pin-skip chain intact.
func (h *Heap) adjustAllocOffset(sp space, policy collectPolicy, allocatingSize int) (header, error) {
	collected := false
	for {
		base := h.spaceBase(sp)
		if h.allocOffset-base > halfSize-allocatingSize {
			if policy != collectIfNeeded || collected {
				return header{}, cerrors.Wrapf(gcutils.OutOfMemoryError,
					"%d bytes requested with %d free in the half-space", allocatingSize, halfSize-(h.allocOffset-base))
			}

			h.Collect()
			collected = true
			continue
		}

		oldHeader := *h.header(h.allocOffset)
		if oldHeader.isPinnedAt(h.allocOffset) {
			// A pinned object sits directly at the allocation offset - either at the
			// base of the half-space or adjacent to another pinned object, where no
			// skip record separates them.
			h.allocOffset += typeInfoByID(oldHeader.info).size
			continue
		}

		if oldHeader.isSkipRecord() {
			pinnedOffset := decodeOffset(oldHeader.forward)

			// The gap before the next pinned object must hold both the request and a
			// trailing header; otherwise allocation continues past the pinned object.
			if pinnedOffset-h.allocOffset < allocatingSize+headerSize {
				pinnedInfo := typeInfoByID(h.header(pinnedOffset).info)
				h.allocOffset = pinnedOffset + pinnedInfo.size
				continue
			}
		}

		return oldHeader, nil
	}
}
