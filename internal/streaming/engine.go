// Package streaming replaces the host's archive-reading pipeline so that
// selected files are transparently served from loose files on disk instead
// of from the host's packed VER2 archives (spec.md §4.1).
package streaming

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cleoruntime/cleo/internal/pathmap"
)

const imageSlotCount = 8

// imageSlot is one of the 8 concurrently open images an Engine tracks.
type imageSlot struct {
	file    *os.File
	name    string
	mapper  *ReplacementMapper
	inUse   bool
}

// Engine owns the streaming substitution pipeline: image slots, stream
// records, the request queue, and the worker goroutine that services it.
type Engine struct {
	mu     sync.Mutex
	logger *slog.Logger
	paths  *pathmap.Map

	streams []*Stream
	images  [imageSlotCount]imageSlot

	requestCh chan int // buffered FIFO queue, capacity streamCount+1

	lastRequestedOffset uint32 // atomic
	bufferSizeSectors   uint32 // atomic — the global "streaming buffer size"

	statCache *lru.Cache[string, int64]

	// pending holds replacement mappers registered for images not yet
	// opened, keyed by image base name; merged in once LoadCDDirectory
	// runs against the now-open image.
	pending map[string]*ReplacementMapper

	workerDone chan struct{}
	started    bool
}

// NewEngine returns an Engine bound to paths, the file-path rewriter
// open_image resolves through. InitStreams must be called before the
// engine accepts opens or reads.
func NewEngine(logger *slog.Logger, paths *pathmap.Map) *Engine {
	cache, _ := lru.New[string, int64](256)
	return &Engine{
		logger:    logger,
		paths:     paths,
		statCache: cache,
	}
}

// InitStreams clears all image slots, allocates count stream records, and
// launches the worker thread (spec.md §4.1). After this call the engine is
// ready to accept opens and reads.
func (e *Engine) InitStreams(count int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("streaming: InitStreams called twice")
	}

	for i := range e.images {
		e.images[i] = imageSlot{}
	}

	e.streams = make([]*Stream, count)
	for i := range e.streams {
		e.streams[i] = newStream(i)
	}

	e.requestCh = make(chan int, count+1)
	e.workerDone = make(chan struct{})
	e.started = true

	go e.runWorker()

	e.logger.Info("streaming engine initialised", "streams", count)
	return nil
}

// StreamSource is the 32-bit handle open_image returns: the high byte is
// the image slot index, the low 24 bits are 0 (spec.md §4.1). The same
// encoding is reused by Read, whose caller fills in the low 24 bits with
// the requested offset in sectors.
type StreamSource uint32

// SlotIndex extracts the image slot index encoded in a StreamSource.
func (s StreamSource) SlotIndex() int {
	return int(s >> 24)
}

// WithOffset returns a StreamSource for the same slot with offsetSectors
// packed into its low 24 bits, as a caller builds before calling Read.
func (s StreamSource) WithOffset(offsetSectors uint32) StreamSource {
	return StreamSource(uint32(s.SlotIndex())<<24 | (offsetSectors & 0x00FFFFFF))
}

// OffsetSectors extracts the low-24-bit offset encoded in a StreamSource.
func (s StreamSource) OffsetSectors() uint32 {
	return uint32(s) & 0x00FFFFFF
}

// OpenImage resolves path through the path rewriter, opens the file, stores
// its handle in the first free image slot, and returns a StreamSource
// encoding that slot (spec.md §4.1).
func (e *Engine) OpenImage(path string) (StreamSource, error) {
	resolved := path
	if r, ok := e.paths.Resolve(path); ok {
		resolved = r
	}

	f, err := os.Open(resolved)
	if err != nil {
		return 0, fmt.Errorf("streaming: open image %s: %w", resolved, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	slot := -1
	for i := range e.images {
		if !e.images[i].inUse {
			slot = i
			break
		}
	}
	if slot < 0 {
		f.Close()
		return 0, fmt.Errorf("streaming: no free image slots (max %d)", imageSlotCount)
	}

	name := filepath.Base(resolved)
	e.images[slot] = imageSlot{
		file:   f,
		name:   name,
		mapper: NewReplacementMapper(),
		inUse:  true,
	}

	e.logger.Info("opened image", "path", resolved, "slot", slot)
	return StreamSource(uint32(slot) << 24), nil
}

// RegisterReplacement records a name -> replacement-path substitution for
// the named image, populated from the resource catalogue ahead of the
// directory being parsed (spec.md §3 ReplacementMapper).
func (e *Engine) RegisterReplacement(imageName, entryName, replacementPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.images {
		if e.images[i].inUse && e.images[i].name == imageName {
			e.images[i].mapper.RegisterName(entryName, replacementPath)
			return
		}
	}

	// Image not open yet: stash the registration in a pending mapper,
	// merged in once LoadCDDirectory runs against the now-open image.
	if e.pending == nil {
		e.pending = make(map[string]*ReplacementMapper)
	}
	m, ok := e.pending[imageName]
	if !ok {
		m = NewReplacementMapper()
		e.pending[imageName] = m
	}
	m.RegisterName(entryName, replacementPath)
}

// LoadCDDirectory parses the directory of the image open in slot, and for
// every entry whose name (case-insensitively) has a registered replacement,
// records its offset -> replacement-path mapping, patches entry.cd_size
// (the size-in-sectors to return to the caller), and raises the global
// streaming buffer size (spec.md §4.1).
func (e *Engine) LoadCDDirectory(slot int, source CDEntryUpdater) error {
	e.mu.Lock()
	img := &e.images[slot]
	if !img.inUse {
		e.mu.Unlock()
		return fmt.Errorf("streaming: LoadCDDirectory: slot %d not open", slot)
	}
	file := img.file
	mapper := img.mapper
	pending, hasPending := e.pending[img.name]
	e.mu.Unlock()

	if hasPending {
		mergeMapper(mapper, pending)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("streaming: seek directory: %w", err)
	}
	var magicPeek [4]byte
	if _, err := file.Read(magicPeek[:]); err == nil && !DirectoryMagicValid(magicPeek[:]) {
		e.logger.Warn("archive directory has unexpected magic, parsing anyway", "image_slot", slot)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("streaming: seek directory: %w", err)
	}
	entries, err := ParseDirectory(file)
	if err != nil {
		return fmt.Errorf("streaming: parse directory: %w", err)
	}

	var maxSectors uint32
	for i, entry := range entries {
		source.BindEntry(i, entry.OffsetSectors)

		replacement, ok := mapper.ReplacementForName(entry.Name)
		if !ok {
			continue
		}
		size, err := e.statSize(replacement)
		if err != nil {
			e.logger.Warn("replacement entry cannot be stat'd, discarding", "name", entry.Name, "path", replacement, "error", err)
			continue
		}
		sectors := SectorsForBytes(size)
		mapper.BindOffset(entry.OffsetSectors, replacement)
		source.SetCDSize(entry.OffsetSectors, sectors)
		if sectors > maxSectors {
			maxSectors = sectors
		}
	}

	e.raiseBufferSize(maxSectors)
	return nil
}

func mergeMapper(dst, src *ReplacementMapper) {
	src.mu.RLock()
	defer src.mu.RUnlock()
	for name, path := range src.byName {
		dst.mu.Lock()
		dst.byName[name] = path
		dst.mu.Unlock()
	}
}

// statSize stat's path for its byte size, consulting (and populating) the
// LRU stat cache first.
func (e *Engine) statSize(path string) (int64, error) {
	if v, ok := e.statCache.Get(path); ok {
		return v, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	e.statCache.Add(path, info.Size())
	return info.Size(), nil
}

// CDEntryUpdater lets the host's StreamingInfo table (26,316 records,
// spec.md §3) be patched without this package depending on its concrete
// representation. BindEntry must be called for an entry before SetCDSize
// can find it: a real host already has its StreamingInfo table populated
// by the time a directory loads, but this CLEO-owned table starts empty
// and has nothing else to populate it.
type CDEntryUpdater interface {
	BindEntry(index int, offsetSectors uint32)
	SetCDSize(offsetSectors uint32, sizeSectors uint32)
}

// raiseBufferSize re-establishes the buffer-sizing invariant: the global
// streaming buffer size is >= the largest cd_size seen so far (spec.md
// §4.1 "Buffer sizing invariant").
func (e *Engine) raiseBufferSize(candidate uint32) {
	for {
		cur := atomic.LoadUint32(&e.bufferSizeSectors)
		if candidate <= cur {
			return
		}
		if atomic.CompareAndSwapUint32(&e.bufferSizeSectors, cur, candidate) {
			return
		}
	}
}

// BufferSizeSectors returns the current global streaming buffer size.
func (e *Engine) BufferSizeSectors() uint32 {
	return atomic.LoadUint32(&e.bufferSizeSectors)
}

// Read enqueues a read on stream streamIndex for sizeSectors sectors,
// starting at the offset encoded in source, into dest. It fails (returns
// false, does not enqueue) when the stream is already busy (spec.md §4.1).
func (e *Engine) Read(streamIndex int, dest []byte, source StreamSource, sizeSectors uint32) bool {
	e.mu.Lock()
	if streamIndex < 0 || streamIndex >= len(e.streams) {
		e.mu.Unlock()
		return false
	}
	stream := e.streams[streamIndex]
	e.mu.Unlock()

	offsetSectors := source.OffsetSectors()

	stream.mu.Lock()
	if stream.host.busy != 0 {
		stream.mu.Unlock()
		return false
	}
	stream.host.region = Region{OffsetSectors: offsetSectors, SizeSectors: sizeSectors}
	stream.destBuffer = dest
	stream.sectorsToRead = sizeSectors
	stream.boundSlot = source.SlotIndex()
	stream.traceID = uuid.NewString()
	stream.setBusy(true)
	stream.mu.Unlock()

	atomic.StoreUint32(&e.lastRequestedOffset, offsetSectors)

	e.logger.Debug("streaming read enqueued", "trace_id", stream.traceID, "stream", streamIndex, "offset_sectors", offsetSectors, "size_sectors", sizeSectors)
	e.requestCh <- streamIndex
	return true
}

// LastRequestedOffset returns the offset (in sectors) of the most recently
// enqueued read, across all streams.
func (e *Engine) LastRequestedOffset() uint32 {
	return atomic.LoadUint32(&e.lastRequestedOffset)
}

// Stream returns the stream record at index, for callers that need to
// inspect status or block on completion.
func (e *Engine) Stream(index int) *Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.streams) {
		return nil
	}
	return e.streams[index]
}

// StreamCount returns the number of allocated stream records.
func (e *Engine) StreamCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.streams)
}

// imageForSlot returns the image slot's file handle and replacement
// mapper, used by the worker to service a request.
func (e *Engine) imageForSlot(slot int) (*os.File, *ReplacementMapper, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot < 0 || slot >= imageSlotCount || !e.images[slot].inUse {
		return nil, nil, false
	}
	return e.images[slot].file, e.images[slot].mapper, true
}

// Close stops the worker thread. The spec treats the worker as living for
// the process lifetime (spec.md §5); Close exists for clean shutdown in
// the harness and tests.
func (e *Engine) Close() {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return
	}
	close(e.requestCh)
	<-e.workerDone
	e.mu.Lock()
	for i := range e.images {
		if e.images[i].inUse && e.images[i].file != nil {
			e.images[i].file.Close()
		}
	}
	e.mu.Unlock()
}
