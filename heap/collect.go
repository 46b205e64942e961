package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/verdantvm/gcutils"
	"golang.org/x/exp/slog"
)

// Collect performs a full collection: evacuate everything reachable from the root
// registry into to-space, scan the evacuated objects for embedded handles, run
// finalizers over the from-space objects that were not reached, rebuild the
// pin-skip records around pinned survivors, and swap the space roles.
//
// Collection is non-throwing. The one failure it can encounter - to-space too
// small for a survivor because pinning consumed it - panics.
func (h *Heap) Collect() {
	gcutils.DebugValidate(h)

	usedBefore := h.Used()
	h.collectionCount++
	h.logger.Debug("Heap::Collect",
		slog.Int("UsedBytes", usedBefore),
		slog.Int("Roots", h.rootCount))

	// Phase A: seed to-space from the root registry.
	h.allocOffset = h.toOffset
	for i := 0; i < h.rootCount; i++ {
		h.processReference(h.roots[i].ref)
	}

	// Phase B: Cheney scan. Copies made while scanning extend the work region, so
	// the walk ends when the scan offset catches the allocation offset. Skip
	// records land in the walked region when evacuation routed around a pinned
	// survivor; they are jumped the same way the allocator jumps them.
	scanOffset := h.toOffset
	for scanOffset < h.allocOffset {
		hdr := h.header(scanOffset)
		if hdr.info == infoAbsent {
			if hdr.forward == forwardAbsent {
				break
			}
			scanOffset = decodeOffset(hdr.forward)
			continue
		}

		info := typeInfoByID(hdr.info)
		if info.visitPointers != nil {
			info.visitPointers(h.objectData(scanOffset), h.processReference)
		}
		scanOffset += info.size
	}

	// Phase C: walk from-space, finalizing unreached objects and rebuilding the
	// pin-skip chain. pinRecordOffset trails the walk: whenever a pinned object is
	// found that is not adjacent to the previous one, a skip record is written at
	// the trailing position. The chain lands in what becomes the next evacuation
	// target after the swap.
	finalized := 0
	pinRecordOffset := h.fromOffset
	scanOffset = h.fromOffset
	for scanOffset-h.fromOffset < halfSize-headerSize {
		hdr := h.header(scanOffset)
		if hdr.info == infoAbsent {
			if hdr.forward != forwardAbsent {
				// No live objects remain before the next pinned object. The pinned
				// object may have been unpinned since the record was written, so it is
				// re-examined rather than skipped.
				scanOffset = decodeOffset(hdr.forward)
				continue
			}
			break
		}

		info := typeInfoByID(hdr.info)
		if hdr.forward == forwardAbsent {
			if info.finalize != nil {
				info.finalize(h.objectData(scanOffset))
				finalized++
			}
		} else if hdr.isPinnedAt(scanOffset) {
			if pinRecordOffset != scanOffset {
				*h.header(pinRecordOffset) = header{
					info:    infoAbsent,
					forward: encodeOffset(scanOffset),
				}
			}
			pinRecordOffset = scanOffset + info.size
		}

		scanOffset += info.size
	}

	// When fewer bytes than a header remain, no sentinel fits; the next allocation
	// in that half is preceded by a collection, so the chain is never read past
	// this point.
	if pinRecordOffset-h.fromOffset < halfSize-headerSize {
		*h.header(pinRecordOffset) = header{}
	}

	// Phase D: swap the space roles. The allocation offset already rests at the
	// end of the evacuated region of the new from-space.
	h.fromOffset, h.toOffset = h.toOffset, h.fromOffset
	h.finalizeCount += finalized

	h.logger.Debug("Heap::Collect complete",
		slog.Int("UsedBytes", h.Used()),
		slog.Int("ReclaimedBytes", usedBefore-h.Used()),
		slog.Int("FinalizedObjects", finalized))
}

// processReference updates one managed handle for the collection in progress:
// handles that are nil or already point outside from-space are left alone,
// handles to already-moved objects are retargeted to the copy, and anything else
// is evacuated first. A pinned object forwards to itself, so retargeting leaves
// the handle unchanged.
func (h *Heap) processReference(ref *Ref) {
	if ref.addr == refAbsent {
		return
	}

	objOffset := decodeOffset(ref.addr)
	if !h.offsetInFrom(objOffset) {
		return
	}

	hdr := h.header(objOffset)
	if hdr.forward != forwardAbsent {
		ref.addr = hdr.forward
		return
	}

	ref.addr = encodeOffset(h.evacuate(objOffset))
}

// evacuate copies one object into to-space and returns the offset of the copy.
// Pinned objects are returned unmoved.
func (h *Heap) evacuate(srcOffset int) int {
	srcHdr := h.header(srcOffset)
	if srcHdr.isPinnedAt(srcOffset) {
		return srcOffset
	}

	info := typeInfoByID(srcHdr.info)
	oldHeader, err := h.adjustAllocOffset(spaceTo, neverCollect, info.size)
	if err != nil {
		panic(cerrors.Wrapf(err, "to-space cannot hold a %d-byte survivor of type %s", info.size, info.name))
	}

	dstOffset := h.allocOffset
	if info.relocate != nil {
		h.zeroRange(dstOffset, info.size)
		info.relocate(h.objectData(srcOffset), h.objectData(dstOffset))
	} else {
		h.copySlot(dstOffset, srcOffset, info.size)
	}

	dstHdr := h.header(dstOffset)
	dstHdr.info = info.id
	dstHdr.forward = forwardAbsent
	srcHdr.forward = encodeOffset(dstOffset)
	h.allocOffset = dstOffset + info.size

	if h.allocOffset-h.toOffset < halfSize-headerSize {
		*h.header(h.allocOffset) = oldHeader
	}

	return dstOffset
}

// FinalizeAll runs the finalizer of every object in both half-spaces whose header
// carries no forwardee - not pinned, not forwarded. The root registry must be
// empty by contract when the heap is torn down.
func (h *Heap) FinalizeAll() {
	if h.rootCount != 0 {
		panic(errors.Errorf("%d root handles are still registered at heap teardown", h.rootCount))
	}

	for _, base := range [2]int{0, halfSize} {
		h.finalizeSpace(base)
	}
}

func (h *Heap) finalizeSpace(base int) {
	scanOffset := base
	for scanOffset-base < halfSize-headerSize {
		hdr := h.header(scanOffset)
		if hdr.info == infoAbsent {
			if hdr.forward != forwardAbsent {
				scanOffset = decodeOffset(hdr.forward)
				continue
			}
			break
		}

		info := typeInfoByID(hdr.info)
		if hdr.forward == forwardAbsent && info.finalize != nil {
			info.finalize(h.objectData(scanOffset))
			h.finalizeCount++
		}
		scanOffset += info.size
	}
}

// Destroy finalizes every remaining object and logs teardown statistics. The
// heap must not be used afterward.
func (h *Heap) Destroy() {
	h.logger.Debug("Heap::Destroy",
		slog.Int("UsedBytes", h.Used()),
		slog.Int("Collections", h.collectionCount))

	h.FinalizeAll()
}
