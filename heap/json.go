package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// PrintDetailedMap writes a JSON description of the heap: sizes, counters, and
// every object and free region of the current from-space.
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	objState.Name("TotalBytes").Int(TotalSize)
	objState.Name("HalfSpaceBytes").Int(halfSize)
	objState.Name("UsedBytes").Int(h.Used())
	objState.Name("FromOffset").Int(h.fromOffset)
	objState.Name("Collections").Int(h.collectionCount)
	objState.Name("FinalizedObjects").Int(h.finalizeCount)
	objState.Name("Roots").Int(h.rootCount)

	arrayState := objState.Name("Regions").Array()
	defer arrayState.End()

	_ = h.VisitAllRegions(
		func(offset int, size int, info *TypeInfo, pinned bool, free bool) error {
			regionObj := arrayState.Object()
			defer regionObj.End()

			regionObj.Name("Offset").Int(offset)
			regionObj.Name("Size").Int(size)
			if free {
				regionObj.Name("Type").String("Free")
			} else {
				regionObj.Name("Type").String(info.name)
				regionObj.Name("Pinned").Bool(pinned)
			}

			return nil
		})
}

// BuildStatsString returns the PrintDetailedMap output as a JSON string
func (h *Heap) BuildStatsString() string {
	writer := jwriter.NewWriter()
	h.PrintDetailedMap(&writer)
	return string(writer.Bytes())
}
