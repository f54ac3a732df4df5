package streaming

import "sync"

// InfoEntryCount is the host's fixed StreamingInfo table size (spec.md §3:
// "A fixed-size array of 26,316 records inside the host").
const InfoEntryCount = 26316

// InfoEntry describes one resource inside the host's StreamingInfo table.
// CLEO only ever mutates CDSize, for entries whose region has a larger
// replacement (spec.md §3).
type InfoEntry struct {
	Next, Prev, NextOnCD int32
	Flags                uint16
	ImageID              uint16
	CDPos                uint32 // sector offset
	CDSize               uint32 // sector size
	LoadState            uint8
}

// Info is CLEO's view of the host-owned StreamingInfo table: a
// mutex-guarded slice CLEO patches cd_size on, consulted by
// Engine.LoadCDDirectory through the CDEntryUpdater interface it already
// exposes.
type Info struct {
	mu      sync.Mutex
	entries []InfoEntry
	// byOffset indexes entries by (imageID, offsetSectors) so SetCDSize
	// can find the right record without a linear scan.
	byOffset map[infoKey]int
}

type infoKey struct {
	imageID       uint16
	offsetSectors uint32
}

// NewInfo returns an Info sized to the host's fixed table, all entries
// zeroed.
func NewInfo() *Info {
	return &Info{
		entries:  make([]InfoEntry, InfoEntryCount),
		byOffset: make(map[infoKey]int),
	}
}

// BindImage associates entry index i with (imageID, offsetSectors), so a
// later SetCDSize for that image/offset finds it. Called while populating
// the table from a parsed archive directory.
func (info *Info) BindImage(i int, imageID uint16, offsetSectors uint32) {
	info.mu.Lock()
	defer info.mu.Unlock()
	if i < 0 || i >= len(info.entries) {
		return
	}
	info.entries[i].ImageID = imageID
	info.entries[i].CDPos = offsetSectors
	info.byOffset[infoKey{imageID, offsetSectors}] = i
}

// Entry returns a copy of entry i.
func (info *Info) Entry(i int) InfoEntry {
	info.mu.Lock()
	defer info.mu.Unlock()
	if i < 0 || i >= len(info.entries) {
		return InfoEntry{}
	}
	return info.entries[i]
}

// ForImage implements the per-image view Engine.LoadCDDirectory patches
// through the CDEntryUpdater contract.
func (info *Info) ForImage(imageID uint16) CDEntryUpdater {
	return &imageView{info: info, imageID: imageID}
}

type imageView struct {
	info    *Info
	imageID uint16
}

// BindEntry implements CDEntryUpdater: it associates StreamingInfo record
// index with (imageID, offsetSectors), the step a real host already did by
// the time CLEO patches cd_size, but which this table must do for itself
// since nothing else populates it here (spec.md §3 "StreamingInfo").
func (v *imageView) BindEntry(index int, offsetSectors uint32) {
	v.info.BindImage(index, v.imageID, offsetSectors)
}

// SetCDSize implements CDEntryUpdater: it patches the cd_size of whichever
// StreamingInfo entry is bound to (imageID, offsetSectors) (spec.md §4.1
// "updates that entry's cd_size to the replacement's size-in-sectors").
func (v *imageView) SetCDSize(offsetSectors uint32, sizeSectors uint32) {
	v.info.mu.Lock()
	defer v.info.mu.Unlock()
	idx, ok := v.info.byOffset[infoKey{v.imageID, offsetSectors}]
	if !ok {
		return
	}
	v.info.entries[idx].CDSize = sizeSectors
}
