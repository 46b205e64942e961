package heap

import "unsafe"

// header is the in-band prefix of every object slot. The two words encode the full
// object state table:
//
//	info present, forward absent  - live object
//	info present, forward == self - pinned live object
//	info present, forward other   - evacuated, forward names the copy
//	info absent, forward present  - pin-skip record chaining to the next pinned object
//	info absent, forward absent   - end-of-space sentinel
//
// Both words store offset+1 / id+1 so that zeroed memory reads as the sentinel.
type header struct {
	info    uint32
	forward uint32
}

const headerSize = int(unsafe.Sizeof(header{}))

const (
	infoAbsent    uint32 = 0
	forwardAbsent uint32 = 0
)

// encodeOffset converts a byte offset within the heap buffer into its stored
// header representation.
func encodeOffset(offset int) uint32 {
	return uint32(offset) + 1
}

func decodeOffset(value uint32) int {
	return int(value) - 1
}

func (h header) isSkipRecord() bool {
	return h.info == infoAbsent && h.forward != forwardAbsent
}

func (h header) isSentinel() bool {
	return h.info == infoAbsent && h.forward == forwardAbsent
}

func (h header) isPinnedAt(offset int) bool {
	return h.info != infoAbsent && h.forward == encodeOffset(offset)
}
