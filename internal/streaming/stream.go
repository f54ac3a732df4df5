package streaming

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Status codes a Stream's status field can hold (spec.md §3: "status code
// (0 ok, 0xFE error, other host codes)").
const (
	StatusOK    int32 = 0
	StatusError int32 = 0xFE
)

// hostStream mirrors the host's per-stream record layout exactly: the host's
// own opcode handlers read and write this memory, so its size and field
// offsets must match bit-for-bit (spec.md §3, §9: "Express the record as a
// packed 8-byte-aligned composite with field offsets asserted at build
// time"). Opaque host primitives (semaphore, mutex) are represented as
// 8-byte handles; CLEO never operates on them directly, it only has to keep
// them resident in their expected slot.
type hostStream struct {
	region      Region         // offset 0x00, 8 bytes
	buffer      unsafe.Pointer // offset 0x08, 8 bytes — destination buffer
	status      int32          // offset 0x10, 4 bytes
	busy        uint8          // offset 0x14
	processing  uint8          // offset 0x15
	inUse       uint8          // offset 0x16
	_pad        uint8          // offset 0x17
	semaphore   uintptr        // offset 0x18, 8 bytes — opaque host handle
	mutex       uintptr        // offset 0x20, 8 bytes — opaque host handle
	imageHandle uintptr        // offset 0x28, 8 bytes — opaque host handle
}

// Expected field offsets into hostStream, matching the host's own record
// layout (spec.md §3: "Layout must be exactly 0x30 bytes and field offsets
// must match the host"). Asserted at package initialisation in the init()
// below rather than trusted to Go's struct layout rules holding by coincidence.
const (
	offsetRegion      = 0x00
	offsetBuffer      = 0x08
	offsetStatus      = 0x10
	offsetBusy        = 0x14
	offsetProcessing  = 0x15
	offsetInUse       = 0x16
	offsetSemaphore   = 0x18
	offsetMutex       = 0x20
	offsetImageHandle = 0x28
	hostStreamSize    = 0x30
)

func init() {
	var s hostStream
	assertOffset("region", unsafe.Offsetof(s.region), offsetRegion)
	assertOffset("buffer", unsafe.Offsetof(s.buffer), offsetBuffer)
	assertOffset("status", unsafe.Offsetof(s.status), offsetStatus)
	assertOffset("busy", unsafe.Offsetof(s.busy), offsetBusy)
	assertOffset("processing", unsafe.Offsetof(s.processing), offsetProcessing)
	assertOffset("inUse", unsafe.Offsetof(s.inUse), offsetInUse)
	assertOffset("semaphore", unsafe.Offsetof(s.semaphore), offsetSemaphore)
	assertOffset("mutex", unsafe.Offsetof(s.mutex), offsetMutex)
	assertOffset("imageHandle", unsafe.Offsetof(s.imageHandle), offsetImageHandle)
	if sz := unsafe.Sizeof(s); sz != hostStreamSize {
		panic("streaming: hostStream size mismatch, want 0x30 got " + itoa(uintptr(sz)))
	}
}

func assertOffset(field string, got, want uintptr) {
	if got != want {
		panic("streaming: hostStream." + field + " offset mismatch, want " + itoa(want) + " got " + itoa(got))
	}
}

// itoa avoids pulling in fmt/strconv for a panic message evaluated once at
// init time.
func itoa(v uintptr) string {
	if v == 0 {
		return "0x0"
	}
	const digits = "0123456789abcdef"
	buf := make([]byte, 0, 18)
	buf = append(buf, '0', 'x')
	started := false
	for shift := 60; shift >= 0; shift -= 4 {
		d := (v >> uint(shift)) & 0xF
		if d != 0 {
			started = true
		}
		if started {
			buf = append(buf, digits[d])
		}
	}
	return string(buf)
}

// Stream pairs the host-compatible record with the Go-side control state
// (per-stream mutex and completion signal) that services it. The host
// record is exclusively owned by whoever is currently servicing the stream
// — the main thread during a request, the worker thread while handling it
// (spec.md §5) — so stream.mu guards only the brief critical section at the
// end of a request, never the whole service.
type Stream struct {
	index int
	host  hostStream

	// mu is the per-stream critical section described in spec.md §4.1 step
	// 4: the worker enters it to clear sectors_to_read, signal completion,
	// and clear the processing flag.
	mu sync.Mutex

	// completion is posted (non-blocking) when the worker finishes
	// servicing a request for this stream, standing in for the host's
	// opaque per-stream semaphore. WaitForCompletion receives from it.
	completion chan struct{}

	// sectorsToRead is the pending request size in sectors; cleared inside
	// the critical section once servicing completes.
	sectorsToRead uint32

	destBuffer []byte

	// boundSlot is the image slot the stream's current request targets.
	boundSlot int

	// traceID identifies the stream's current request in log lines, so a
	// single read can be followed across the enqueue and worker-service log
	// entries it spans.
	traceID string
}

func newStream(index int) *Stream {
	return &Stream{
		index:      index,
		completion: make(chan struct{}, 1),
	}
}

// Busy reports whether the stream currently has an outstanding or
// in-flight request.
func (s *Stream) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host.busy != 0
}

func (s *Stream) setBusy(v bool) {
	if v {
		s.host.busy = 1
	} else {
		s.host.busy = 0
	}
}

func (s *Stream) setProcessing(v bool) {
	if v {
		s.host.processing = 1
	} else {
		s.host.processing = 0
	}
}

// InUse reports whether the caller has flagged this stream as something it
// intends to wait on (spec.md §9 open question 3: "caller sets in_use=true
// before calling the host's wait entry; worker clears it via per-stream
// semaphore post").
func (s *Stream) InUse() bool {
	return s.host.inUse != 0
}

// SetInUse marks the stream as something its caller intends to wait for
// completion of. Must be called by the would-be waiter before the request
// is enqueued.
func (s *Stream) SetInUse(v bool) {
	if v {
		s.host.inUse = 1
	} else {
		s.host.inUse = 0
	}
}

// Status returns the stream's last completed request status.
func (s *Stream) Status() int32 {
	return atomic.LoadInt32(&s.host.status)
}

// Region returns the region currently assigned to the stream.
func (s *Stream) Region() Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host.region
}

// WaitForCompletion blocks on the stream's completion signal. Per spec.md
// §9 open question 1, the upstream behaviour when nothing is outstanding is
// unclear; this reproduces it literally (block unconditionally) while
// logging loudly through the supplied warn function when called with
// nothing outstanding, rather than guessing at an early return.
func (s *Stream) WaitForCompletion(warnNoOutstanding func()) {
	if !s.Busy() && warnNoOutstanding != nil {
		warnNoOutstanding()
	}
	<-s.completion
}
