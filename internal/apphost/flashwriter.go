package apphost

import (
	"encoding/binary"
	"sync"

	"seoshub/internal/flashimage"
)

// FlashWriter is the protected-region write capability the kernel uses to
// mark an app frame DELETED in place. Real hardware guards this behind a
// flash-controller unlock sequence; here it is an interface so tests and
// simulated hosts can substitute an in-memory region.
type FlashWriter interface {
	// WriteMarker rewrites the 2-byte marker field of the frame at f's
	// location to marker. It reports whether the write succeeded.
	WriteMarker(f flashimage.Frame, marker flashimage.Marker) bool
}

// Region owns a shared-flash byte region and the frames within it,
// re-scanned on demand via flashimage.Iterator.
type Region struct {
	mu   sync.RWMutex
	data []byte
}

// NewRegion wraps an existing shared-region byte slice.
func NewRegion(data []byte) *Region {
	return &Region{data: data}
}

// Raw returns the region's backing byte slice. Callers may construct their
// own flashimage.Iterator over it; mutations made through WriteMarker are
// visible to any iterator still walking this slice, since both share the
// same backing array. Safe only when called from the kernel's single
// dispatcher goroutine, matching the cooperative single-core model this
// type stands in for.
func (r *Region) Raw() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Frames returns every frame currently in the region, in order.
func (r *Region) Frames() []flashimage.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it := flashimage.NewIterator(r.data)
	var out []flashimage.Frame
	for {
		f, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, f)
	}
	return out
}

// WriteMarker implements FlashWriter over the in-memory region.
func (r *Region) WriteMarker(f flashimage.Frame, marker flashimage.Marker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.MarkerOffset+2 > len(r.data) {
		return false
	}
	binary.BigEndian.PutUint16(r.data[f.MarkerOffset:f.MarkerOffset+2], uint16(marker))
	return true
}

var _ FlashWriter = (*Region)(nil)
