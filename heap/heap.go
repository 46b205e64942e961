package heap

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

const (
	// TotalSize is the size in bytes of the heap buffer. The buffer is divided into
	// two equal half-spaces; live objects are evacuated from one to the other on
	// each collection and the roles swap.
	TotalSize = 1024
	halfSize  = TotalSize / 2

	// MaxRootCount is the capacity of the root registry. Registering more
	// simultaneous off-heap handles than this panics.
	MaxRootCount = 1024
)

type space uint32

const (
	spaceFrom space = iota
	spaceTo
)

type collectPolicy uint32

const (
	collectIfNeeded collectPolicy = iota
	neverCollect
)

type rootEntry struct {
	ref  *Ref
	info *TypeInfo
}

// Heap is a moving, precise, semi-space collector over a fixed buffer. Objects are
// bump-allocated in from-space; a collection evacuates the reachable ones into
// to-space, finalizes the rest, and swaps the space roles. Pinned objects stay in
// place and are routed around with pin-skip records.
//
// All operations assume a single goroutine. Handles resolve their owning heap
// through Instance, so tests that need isolation swap the instance with
// SetInstance.
type Heap struct {
	logger *slog.Logger

	// buffer is declared in words so that both half-space bases carry the maximum
	// scalar alignment. All addressing is done with byte offsets into it.
	buffer [TotalSize / 8]uint64

	fromOffset  int
	toOffset    int
	allocOffset int

	roots     [MaxRootCount]rootEntry
	rootCount int

	collectionCount int
	finalizeCount   int
}

var instance *Heap

// Instance returns the process-global heap, creating it with default options on
// first use.
func Instance() *Heap {
	if instance == nil {
		instance = New(CreateOptions{})
	}

	return instance
}

// SetInstance replaces the process-global heap and returns the previous one.
// Handles are bound to whichever instance was current when they were created, so
// swap back before touching older handles.
func SetInstance(heap *Heap) *Heap {
	previous := instance
	instance = heap
	return previous
}

func (h *Heap) base() unsafe.Pointer {
	return unsafe.Pointer(&h.buffer[0])
}

func (h *Heap) header(offset int) *header {
	return (*header)(unsafe.Add(h.base(), offset))
}

func (h *Heap) objectData(offset int) unsafe.Pointer {
	return unsafe.Add(h.base(), offset+headerSize)
}

func (h *Heap) spaceBase(sp space) int {
	if sp == spaceTo {
		return h.toOffset
	}

	return h.fromOffset
}

// Used returns the number of bytes consumed in the active half-space, which is
// exactly the bump-pointer offset from the from-space base.
func (h *Heap) Used() int {
	return h.allocOffset - h.fromOffset
}

// CollectionCount returns the number of collections this heap has performed.
func (h *Heap) CollectionCount() int {
	return h.collectionCount
}

// FinalizedCount returns the total number of finalizers this heap has invoked.
func (h *Heap) FinalizedCount() int {
	return h.finalizeCount
}

// RootCount returns the number of off-heap handles currently registered.
func (h *Heap) RootCount() int {
	return h.rootCount
}

func (h *Heap) offsetInFrom(offset int) bool {
	return offset >= h.fromOffset && offset < h.fromOffset+halfSize
}

// InFrom reports whether a raw object pointer lies in the current from-space.
// A raw pointer only stays valid across a collection while its object is pinned;
// after a collection the spaces have swapped around a pinned object, so this is
// expected to flip.
func (h *Heap) InFrom(ptr unsafe.Pointer) bool {
	address := uintptr(ptr)
	begin := uintptr(h.base()) + uintptr(h.fromOffset)
	return address >= begin && address < begin+halfSize
}

func (h *Heap) zeroRange(offset int, size int) {
	region := unsafe.Slice((*byte)(unsafe.Add(h.base(), offset)), size)
	for i := range region {
		region[i] = 0
	}
}

func (h *Heap) copySlot(dstOffset int, srcOffset int, size int) {
	dst := unsafe.Slice((*byte)(unsafe.Add(h.base(), dstOffset)), size)
	src := unsafe.Slice((*byte)(unsafe.Add(h.base(), srcOffset)), size)
	copy(dst, src)
}

// Validate performs consistency checks on the root registry and the from-space
// header chain. It is only meaningful at quiescent points (not mid-collection).
// When the heap is functioning correctly this cannot return an error, but it may
// assist in diagnosing issues with embedder-provided callbacks.
func (h *Heap) Validate() error {
	if h.rootCount < 0 || h.rootCount > MaxRootCount {
		return errors.Errorf("the root registry holds %d entries, but its capacity is %d", h.rootCount, MaxRootCount)
	}

	bufferBegin := uintptr(h.base())
	for i := 0; i < h.rootCount; i++ {
		entry := h.roots[i]
		if entry.ref == nil || entry.info == nil {
			return errors.Errorf("root registry entry %d is incomplete", i)
		}

		address := uintptr(unsafe.Pointer(entry.ref))
		if address >= bufferBegin && address < bufferBegin+TotalSize {
			return errors.Errorf("root registry entry %d lives inside the heap buffer- heap-embedded handles are discovered by the scan and must not be registered", i)
		}

		if entry.ref.addr == refAbsent {
			continue
		}
		objOffset := decodeOffset(entry.ref.addr)
		if objOffset < 0 || objOffset+headerSize > TotalSize {
			return errors.Errorf("root registry entry %d names offset %d, outside the heap buffer", i, objOffset)
		}
		hdr := h.header(objOffset)
		if hdr.info == infoAbsent || int(hdr.info) > len(typesByID) {
			return errors.Errorf("root registry entry %d names offset %d, which does not hold a live object header", i, objOffset)
		}
	}

	if h.allocOffset < h.fromOffset || h.allocOffset > h.fromOffset+halfSize {
		return errors.Errorf("the allocation offset %d is outside the active half-space [%d, %d)", h.allocOffset, h.fromOffset, h.fromOffset+halfSize)
	}

	end := h.fromOffset + halfSize
	scanOffset := h.fromOffset
	for scanOffset-h.fromOffset < halfSize-headerSize {
		hdr := *h.header(scanOffset)
		if hdr.isSentinel() {
			break
		}

		if hdr.isSkipRecord() {
			target := decodeOffset(hdr.forward)
			if target <= scanOffset || target >= end {
				return errors.Errorf("the pin-skip record at offset %d chains to offset %d, which is not ahead of it in the half-space", scanOffset, target)
			}
			targetHdr := h.header(target)
			if targetHdr.info == infoAbsent || int(targetHdr.info) > len(typesByID) {
				return errors.Errorf("the pin-skip record at offset %d chains to offset %d, which does not hold an object header", scanOffset, target)
			}
			scanOffset = target
			continue
		}

		if int(hdr.info) > len(typesByID) {
			return errors.Errorf("the object at offset %d carries unknown type id %d", scanOffset, hdr.info)
		}
		info := typeInfoByID(hdr.info)
		if scanOffset+info.size > end {
			return errors.Errorf("the %s object at offset %d overruns the half-space", info.name, scanOffset)
		}
		if hdr.forward != forwardAbsent && !hdr.isPinnedAt(scanOffset) {
			return errors.Errorf("the %s object at offset %d is forwarded outside of a collection", info.name, scanOffset)
		}

		scanOffset += info.size
	}

	return nil
}
