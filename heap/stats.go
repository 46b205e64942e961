package heap

import (
	"github.com/verdantvm/gcutils"
)

// VisitAllRegions calls the provided callback once for each object and free
// region of the current from-space, in address order. Offsets are absolute within
// the heap buffer. Free regions cover pin-skip gaps and the unused tail. The walk
// is only meaningful at quiescent points.
func (h *Heap) VisitAllRegions(handleRegion func(offset int, size int, info *TypeInfo, pinned bool, free bool) error) error {
	base := h.fromOffset
	end := base + halfSize

	scanOffset := base
	for scanOffset < end {
		if end-scanOffset < headerSize {
			return handleRegion(scanOffset, end-scanOffset, nil, false, true)
		}

		hdr := *h.header(scanOffset)
		if hdr.isSentinel() {
			return handleRegion(scanOffset, end-scanOffset, nil, false, true)
		}
		if hdr.isSkipRecord() {
			target := decodeOffset(hdr.forward)
			err := handleRegion(scanOffset, target-scanOffset, nil, false, true)
			if err != nil {
				return err
			}
			scanOffset = target
			continue
		}

		info := typeInfoByID(hdr.info)
		err := handleRegion(scanOffset, info.size, info, hdr.isPinnedAt(scanOffset), false)
		if err != nil {
			return err
		}
		scanOffset += info.size
	}

	return nil
}

// AddDetailedStatistics sums this heap's from-space statistics into the
// statistics currently present in the provided gcutils.DetailedStatistics object.
func (h *Heap) AddDetailedStatistics(stats *gcutils.DetailedStatistics) {
	stats.SpaceCount++
	stats.SpaceBytes += halfSize

	_ = h.VisitAllRegions(
		func(offset int, size int, info *TypeInfo, pinned bool, free bool) error {
			if free {
				stats.AddUnusedRange(size)
			} else {
				stats.AddAllocation(size, pinned)
			}

			return nil
		})
}

// AddStatistics sums this heap's from-space statistics into the statistics
// currently present in the provided gcutils.Statistics object.
func (h *Heap) AddStatistics(stats *gcutils.Statistics) {
	stats.SpaceCount++
	stats.SpaceBytes += halfSize

	_ = h.VisitAllRegions(
		func(offset int, size int, info *TypeInfo, pinned bool, free bool) error {
			if free {
				return nil
			}

			stats.AllocationCount++
			stats.AllocationBytes += size
			if pinned {
				stats.PinnedCount++
				stats.PinnedBytes += size
			}

			return nil
		})
}
