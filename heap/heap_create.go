package heap

import (
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// Logger receives debug output from collections and teardown. When nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// New creates an empty heap. Both half-spaces start zeroed, which reads as an
// end-of-space sentinel at each base.
func New(options CreateOptions) *Heap {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Heap{
		logger:   logger,
		toOffset: halfSize,
	}
}
