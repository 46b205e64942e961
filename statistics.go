package gcutils

import "math"

// Statistics summarizes the population of a half-space: how many object slots it
// holds, how many bytes they span, and how much of that is pinned in place and
// therefore unavailable to compaction.
type Statistics struct {
	SpaceCount      int
	SpaceBytes      int
	AllocationCount int
	AllocationBytes int
	PinnedCount     int
	PinnedBytes     int
}

func (s *Statistics) Clear() {
	*s = Statistics{}
}

// MovableBytes returns the portion of the allocated bytes a collection is free
// to relocate.
func (s *Statistics) MovableBytes() int {
	return s.AllocationBytes - s.PinnedBytes
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.SpaceCount += other.SpaceCount
	s.SpaceBytes += other.SpaceBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
	s.PinnedCount += other.PinnedCount
	s.PinnedBytes += other.PinnedBytes
}

// DetailedStatistics extends Statistics with free-range accounting. A compacted
// half-space has at most one unused range (the tail); every additional range is a
// hole left behind by pinning.
type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

// FragmentedRangeCount returns the number of unused ranges that are not the
// compaction tail, i.e. holes the next collection cannot fill while their
// neighboring pins remain.
func (s *DetailedStatistics) FragmentedRangeCount() int {
	if s.UnusedRangeCount == 0 {
		return 0
	}

	return s.UnusedRangeCount - 1
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}
	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int, pinned bool) {
	s.AllocationCount++
	s.AllocationBytes += size
	if pinned {
		s.PinnedCount++
		s.PinnedBytes += size
	}

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}
	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}
	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}
	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}
	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}
