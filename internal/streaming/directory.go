package streaming

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// directoryMagic is the 4-byte identifier an archive directory must begin
// with (spec.md §4.1). A missing or wrong identifier is logged but parsing
// continues, so ParseDirectory never fails solely because of it.
const directoryMagic = "VER2"

const directoryEntrySize = 32 // u32 offset, u32 size, [u8;24] name

// DirectoryEntry is one 32-byte record of an archive's VER2 directory.
type DirectoryEntry struct {
	OffsetSectors uint32
	SizeSectors   uint32
	Name          string
}

// ParseDirectory reads an archive directory per spec.md §4.1: 4-byte
// identifier "VER2", u32 entry_count, then entry_count 32-byte records of
// (u32 offset_sectors, u32 size_sectors, [24]byte name), little-endian. The
// name is null-terminated if shorter than 24 bytes, otherwise all 24 bytes
// form the name.
func ParseDirectory(r io.Reader) ([]DirectoryEntry, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("streaming: read directory magic: %w", err)
	}
	magicOK := string(magic[:]) == directoryMagic
	// Logged by the caller, who has the image name for context; continue
	// parsing regardless (spec.md: "A missing or wrong identifier is
	// logged but parsing continues").
	_ = magicOK

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("streaming: read entry count: %w", err)
	}

	entries := make([]DirectoryEntry, 0, count)
	raw := make([]byte, directoryEntrySize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("streaming: read directory entry %d: %w", i, err)
		}
		offset := binary.LittleEndian.Uint32(raw[0:4])
		size := binary.LittleEndian.Uint32(raw[4:8])
		nameBytes := raw[8:32]
		if nul := bytes.IndexByte(nameBytes, 0); nul >= 0 {
			nameBytes = nameBytes[:nul]
		}
		entries = append(entries, DirectoryEntry{
			OffsetSectors: offset,
			SizeSectors:   size,
			Name:          string(nameBytes),
		})
	}
	return entries, nil
}

// DirectoryMagicValid reports whether raw begins with the expected
// identifier, for callers that want to log a mismatch themselves.
func DirectoryMagicValid(raw []byte) bool {
	return len(raw) >= 4 && string(raw[:4]) == directoryMagic
}
