package perw

import "runcount/common"

type Section struct {
	Name           string
	Offset         int64
	Size           int64
	VirtualAddress uint32
	Index          int
	Flags          uint32
}

// Range returns the section's raw data range in the image.
func (s Section) Range() common.Range {
	return common.Range{Base: uint64(s.Offset), Size: uint64(s.Size)}
}

type PEFile struct {
	Is64Bit  bool
	Machine  uint16
	Sections []Section
	RawData  []byte
}

// ResourceEntry is one top-level resource type resolved down to its first
// data entry.
type ResourceEntry struct {
	Index        int
	Type         uint16
	NameIsString bool
	DataEntry    uint64 // section-relative offset of the data entry record
	FileOffset   uint32 // payload offset as recorded by the toolchain
	FileSize     uint32
}

// ResourceLayout is the outcome of a resource tree walk.
type ResourceLayout struct {
	// Entries are sorted by FileOffset.
	Entries      []ResourceEntry
	MaxDataEntry uint64
	// Reposition converts recorded payload offsets to section offsets.
	Reposition    int64
	Icon          *ResourceEntry
	CounterOffset uint64
}

// SectionOffset converts an entry's recorded payload offset to a
// section-relative offset.
func (l *ResourceLayout) SectionOffset(e ResourceEntry) int64 {
	return int64(e.FileOffset) - l.Reposition
}
