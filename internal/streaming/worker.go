package streaming

import "os"

// runWorker is the dedicated I/O thread launched by InitStreams. It wakes
// on the request queue, dequeues a stream index in FIFO order, and services
// that stream's pending request (spec.md §4.1 "Worker protocol"). It never
// exits under normal operation; Close tears it down for tests and the
// harness.
func (e *Engine) runWorker() {
	defer close(e.workerDone)

	for idx := range e.requestCh {
		e.handleRequest(idx)
	}
}

// handleRequest services one stream's pending request end to end, then
// enters the per-stream critical section to publish completion (spec.md
// §4.1 steps 2-4).
func (e *Engine) handleRequest(idx int) {
	e.mu.Lock()
	if idx < 0 || idx >= len(e.streams) {
		e.mu.Unlock()
		return
	}
	stream := e.streams[idx]
	e.mu.Unlock()

	stream.mu.Lock()
	stream.setProcessing(true)
	prevStatus := stream.host.status
	region := stream.host.region
	dest := stream.destBuffer
	traceID := stream.traceID
	stream.mu.Unlock()

	if prevStatus == StatusOK {
		e.service(stream, region, dest)
	} else {
		// The previous request failed: this one completes without any read
		// and the status is reset to OK, so the request after it is
		// serviced normally again.
		e.succeedStream(stream)
	}
	e.logger.Debug("streaming read serviced", "trace_id", traceID, "stream", idx, "status", stream.Status())

	stream.mu.Lock()
	stream.sectorsToRead = 0
	if stream.host.inUse != 0 {
		stream.host.inUse = 0
		select {
		case stream.completion <- struct{}{}:
		default:
		}
	}
	stream.setProcessing(false)
	stream.setBusy(false)
	stream.mu.Unlock()
}

// service performs the actual read for one request: if the stream's region
// is mapped to a replacement, serve it (zero-filling any shortfall);
// otherwise read straight from the image file at its native offset
// (spec.md §4.1 step 2).
func (e *Engine) service(stream *Stream, region Region, dest []byte) {
	slot := e.slotForStream(stream)
	file, mapper, ok := e.imageForSlot(slot)
	if !ok {
		e.failStream(stream)
		return
	}

	sizeBytes := region.SizeBytes()
	if int64(len(dest)) < sizeBytes {
		sizeBytes = int64(len(dest))
	}

	if mapper != nil {
		if replacementPath, ok := mapper.ReplacementForOffset(region.OffsetSectors); ok {
			e.serveReplacement(stream, replacementPath, dest[:sizeBytes])
			return
		}
	}

	e.serveImage(stream, file, region, dest[:sizeBytes])
}

// serveReplacement reads up to len(dest) bytes from the replacement file at
// offset 0, zero-filling any tail the file is too short to cover.
func (e *Engine) serveReplacement(stream *Stream, path string, dest []byte) {
	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("replacement file open failed mid-service", "path", path, "error", err)
		e.failStream(stream)
		return
	}
	defer f.Close()

	n, err := f.Read(dest)
	if err != nil && n == 0 {
		e.logger.Warn("replacement file read failed", "path", path, "error", err)
		e.failStream(stream)
		return
	}
	if n < len(dest) {
		missing := len(dest) - n
		if missing >= SectorSize {
			e.logger.Warn("replacement file shorter than requested region, zero-filling", "path", path, "missing_bytes", missing)
		}
		for i := n; i < len(dest); i++ {
			dest[i] = 0
		}
	}
	e.succeedStream(stream)
}

// serveImage reads the requested region straight out of the open image
// file at its native offset.
func (e *Engine) serveImage(stream *Stream, file *os.File, region Region, dest []byte) {
	offset := int64(region.OffsetSectors) * SectorSize
	if _, err := file.ReadAt(dest, offset); err != nil {
		e.logger.Warn("image read failed", "offset_sectors", region.OffsetSectors, "error", err)
		e.failStream(stream)
		return
	}
	e.succeedStream(stream)
}

func (e *Engine) succeedStream(stream *Stream) {
	stream.mu.Lock()
	stream.host.status = StatusOK
	stream.mu.Unlock()
}

func (e *Engine) failStream(stream *Stream) {
	stream.mu.Lock()
	stream.host.status = StatusError
	stream.mu.Unlock()
}

// slotForStream finds which image slot a stream's region belongs to. In
// the real host, a stream's image association is implicit in which image
// the caller most recently opened for it; CLEO tracks that by having
// callers bind a stream to its current image slot before enqueueing a
// read. The single-image-per-stream-at-a-time assumption matches the
// host's own usage (spec.md §5: "the engine treats each Stream[i] as
// exclusively owned by whoever is currently servicing it").
func (e *Engine) slotForStream(stream *Stream) int {
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return stream.boundSlot
}
