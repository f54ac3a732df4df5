package streaming

import (
	"sync"

	"golang.org/x/text/cases"
)

// SectorSize is the unit archive offsets and sizes are stored in
// (spec.md GLOSSARY: "Sector. 2048 bytes").
const SectorSize = 2048

// Region is an (offset, size) pair within one image, both in sectors.
// Region-key equality is by OffsetSectors within a given image (spec.md §3).
type Region struct {
	OffsetSectors uint32
	SizeSectors   uint32
}

// SizeBytes returns the region's footprint in bytes.
func (r Region) SizeBytes() int64 {
	return int64(r.SizeSectors) * SectorSize
}

// SectorsForBytes returns ceil(byteSize / SectorSize), the sector count a
// replacement of byteSize bytes occupies.
func SectorsForBytes(byteSize int64) uint32 {
	if byteSize <= 0 {
		return 0
	}
	return uint32((byteSize + SectorSize - 1) / SectorSize)
}

// ReplacementMapper holds, per image, the two maps spec.md §3 describes: a
// case-insensitive name -> replacement-path map populated from the resource
// catalogue, and an offset_sectors -> replacement-path map populated once
// the archive directory is parsed and names are resolved to regions.
type ReplacementMapper struct {
	mu          sync.RWMutex
	byName      map[string]string
	byOffset    map[uint32]string
}

// NewReplacementMapper returns an empty mapper for one image.
func NewReplacementMapper() *ReplacementMapper {
	return &ReplacementMapper{
		byName:   make(map[string]string),
		byOffset: make(map[uint32]string),
	}
}

// nameFold is the same case-fold pathmap.Map uses for its identical
// case-insensitive lookup problem (DESIGN.md).
var nameFold = cases.Fold()

func foldName(name string) string {
	return nameFold.String(name)
}

// RegisterName records that entry name should be substituted with the file
// at path, before the directory for its image has even been parsed.
func (m *ReplacementMapper) RegisterName(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[foldName(name)] = path
}

// ReplacementForName returns the replacement path registered for name, case
// insensitively.
func (m *ReplacementMapper) ReplacementForName(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byName[foldName(name)]
	return p, ok
}

// BindOffset records that offsetSectors (an entry's position in this image)
// resolves to the replacement path already registered for its name. Called
// while parsing the archive directory.
func (m *ReplacementMapper) BindOffset(offsetSectors uint32, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOffset[offsetSectors] = path
}

// ReplacementForOffset returns the replacement path bound to offsetSectors,
// if a directory entry at that offset has been resolved to one.
func (m *ReplacementMapper) ReplacementForOffset(offsetSectors uint32) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byOffset[offsetSectors]
	return p, ok
}

// NameCount returns the number of name-keyed registrations, for tests
// asserting the "iff a directory entry exists" invariant (spec.md §8).
func (m *ReplacementMapper) NameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName)
}

// OffsetCount returns the number of resolved offset-keyed mappings.
func (m *ReplacementMapper) OffsetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byOffset)
}
