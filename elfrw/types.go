package elfrw

import (
	"github.com/yalue/elf_reader"

	"runcount/common"
)

type Section struct {
	Name   string
	Offset uint64
	Size   uint64
	Type   uint32
	Index  uint16
}

// Range returns the section's file range. SHT_NOBITS sections occupy no
// file bytes.
func (s Section) Range() common.Range {
	if s.Type == sectionTypeNoBits {
		return common.Range{Base: s.Offset}
	}
	return common.Range{Base: s.Offset, Size: s.Size}
}

type ELFFile struct {
	RawData  []byte
	ELF      elf_reader.ELFFile
	Is64Bit  bool
	Sections []Section
}
